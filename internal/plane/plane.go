// Package plane defines the PlaneSource contract the engine consumes
// and the coordinate types every other component
// addresses a plane/tile by. Concrete decoders
// (OME/BioFormats, TIFF) are external collaborators implementing this
// interface; this package owns only the contract and generic
// composition helpers (readProjection-from-read).
package plane

import (
	"context"

	"github.com/imagec/engine/internal/imgbuf"
)

// PlaneId identifies one 2-D pixel slice. CStack may be
// -1 to denote "not yet specialized" for channel-agnostic pipelines.
type PlaneId struct {
	SeriesIndex int
	CStack      int
	ZStack      int
	TStack      int
}

// TileId identifies a rectangular sub-region of a plane.
type TileId struct {
	TileX, TileY, TileWidth, TileHeight int
}

// ProjectionKind selects the z-range reducer for readProjection.
type ProjectionKind int

const (
	ProjectionNone ProjectionKind = iota
	ProjectionMax
	ProjectionMin
	ProjectionAvg
	ProjectionMiddle
)

// ZRange is an inclusive [Start, End] range of z-stack indices.
type ZRange struct{ Start, End int }

// TileGrid describes the tiling scheme for one series at one pyramid level.
type TileGrid struct {
	SeriesIndex           int
	TileWidth, TileHeight int
	CountX, CountY        int
}

// SeriesInfo carries the per-series dimensions and tiling required by
// the Work Planner and the executor's coordinate math.
type SeriesInfo struct {
	SeriesIndex    int
	Width, Height  int
	ZCount, TCount int
	CCount         int
	PyramidLevels  int
	TileGrid       TileGrid
	PixelSizeX     PhysicalPixelSize
	PixelSizeY     PhysicalPixelSize
}

// PhysicalPixelSize is the OME-reported physical size of one pixel
// along an axis, in the unit the decoder reported it in.
type PhysicalPixelSize struct {
	Value float64
	Unit  string // one of units.Unit's string values, or "" if unknown
}

// ImageInventory is everything the Work Planner needs about one image
// file).
type ImageInventory struct {
	Path   string
	Series []SeriesInfo
}

// OmeInfo is the metadata the engine reads for unit conversion and
// cross-channel distance scaling.
type OmeInfo struct {
	Series SeriesInfo
}

// Source is the contract the engine consumes from the I/O layer.
// Implementations must be safe for concurrent reads once constructed.
type Source interface {
	// Enumerate returns the per-series dimension/tiling inventory for path.
	Enumerate(ctx context.Context, path string) (ImageInventory, error)
	// Read returns the pixel data at (plane, tile). Fails with
	// errs.CodePlaneOutOfRange if the coordinate is absent, or
	// errs.CodeDecodeError if the underlying decoder fails.
	Read(ctx context.Context, plane PlaneId, tile TileId) (*imgbuf.ImageBuffer, error)
	// ReadProjection collapses zRange on channel c to a single 2-D
	// buffer using kind, accumulating ProjectionAvg in 32-bit float
	// then rounding back to the source depth.
	ReadProjection(ctx context.Context, c int, zRange ZRange, t int, tile TileId, kind ProjectionKind) (*imgbuf.ImageBuffer, error)
	// Ome returns the declared dimensions/pixel size for one series.
	Ome(ctx context.Context, seriesIndex int) (OmeInfo, error)
}
