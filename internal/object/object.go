// Package object implements the in-flight object model
// and the Object Atom: per-image ownership of each pipeline's
// ObjectList, cross-pipeline tracking-id assignment, and a
// deterministic drain order for the Result Sink.
package object

import (
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/measurekey"
	"github.com/imagec/engine/internal/plane"
)

// Validity is a bit-set over the object's fault flags. An
// object is VALID iff no fault bit is set.
type Validity uint8

const (
	ValidityManualOutOfRangeSize        Validity = 1 << iota
	ValidityManualOutOfRangeCircularity
	ValidityManualOutOfRangeIntensity
	ValidityAtEdge
	ValidityNoCenterOfMass
	ValidityFilteredByRule
)

// IsValid reports whether no fault bit is set. ValidityAtEdge alone is
// informational, not a fault: it only turns an object invalid when a
// filter rule also sets ValidityFilteredByRule.
func (v Validity) IsValid() bool { return v&^ValidityAtEdge == 0 }

// IntensityStats is one channel's measured intensity statistics
// for one object.
type IntensityStats struct {
	Sum, Min, Max, Avg, Median, Stddev float64
}

// Distance is one cross-channel distance measurement.
type Distance struct {
	CenterCenter                             float64
	CenterSurfaceMin, CenterSurfaceMax       float64
	SurfaceSurfaceMin, SurfaceSurfaceMax     float64
	FromId, ToId                             ID
}

// ID is an Object's 64-bit identifier, unique within (image, pipeline)
// at assignment time and unique within the image once all pipelines
// have run.
type ID uint64

// Class is the enumerated classification tag from the project's
// classification set.
type Class uint32

// Object is one segmented region plus everything downstream commands
// attach to it.
type Object struct {
	Class          Class
	ObjectId       ID
	OriginObjectId ID // equals ObjectId if root
	ParentObjectId ID // 0 if no hierarchical parent
	TrackingId     ID // 0 until the Object Atom's tracking sweep assigns one

	// PipelineID records which pipeline produced this object, surviving
	// Atom.Drain()'s flattening so the Result Sink can still attribute
	// each row to its pipeline.
	PipelineID PipelineID

	Plane plane.PlaneId
	Tile  plane.TileId

	BoundingBox imgbuf.Rect
	Mask        *imgbuf.BinaryMask
	Contour     []imgbuf.Point

	Confidence float64
	Validity   Validity

	IntensityByChannel  map[int]IntensityStats      // keyed by cStack
	IntersectingByClass map[Class][]ID              // populated by intersection commands
	DistanceByClass     map[Class][]Distance        // populated by distance commands

	// The packed-key view used by the Result Sink is not stored here:
	// Measurements() builds it from IntensityByChannel on demand rather
	// than keeping it in sync continuously.
}

// NewObject constructs a root object (OriginObjectId == ObjectId).
func NewObject(id ID, class Class, p plane.PlaneId, tile plane.TileId, bbox imgbuf.Rect, mask *imgbuf.BinaryMask) *Object {
	return &Object{
		Class:               class,
		ObjectId:            id,
		OriginObjectId:      id,
		Plane:               p,
		Tile:                tile,
		BoundingBox:         bbox,
		Mask:                mask,
		Confidence:          1.0,
		IntensityByChannel:  map[int]IntensityStats{},
		IntersectingByClass: map[Class][]ID{},
		DistanceByClass:     map[Class][]Distance{},
	}
}

// Measurements packs every populated intensity statistic into the
// packed-key space the Result Sink persists.
func (o *Object) Measurements() map[uint32]float64 {
	out := map[uint32]float64{}
	for cStack, stats := range o.IntensityByChannel {
		for stat, value := range map[measurekey.Stat]float64{
			measurekey.StatSum:    stats.Sum,
			measurekey.StatMin:    stats.Min,
			measurekey.StatMax:    stats.Max,
			measurekey.StatAvg:    stats.Avg,
			measurekey.StatMedian: stats.Median,
			measurekey.StatStddev: stats.Stddev,
		} {
			key, err := measurekey.Encode(measurekey.Key{
				MeasureChannel:      uint16(cStack),
				Stat:                stat,
				CrossChannelStacksC: -1,
				IntersectingChannel: -1,
			})
			if err != nil {
				continue
			}
			out[key] = value
		}
	}
	return out
}
