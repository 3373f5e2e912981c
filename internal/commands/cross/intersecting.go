// Package cross implements the cross-pipeline OBJECTS->OBJECTS command
// family: intersection tagging and distance
// measurement between an object and another pipeline's class.
package cross

import (
	"encoding/json"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/object"
)

// Intersecting tags every active object with the ids of objects of
// TargetClass (drawn from the image's full Object Atom, not just the
// active slot) whose mask overlaps it by at least Threshold, a
// fraction of the active object's own area.
type Intersecting struct {
	TargetClass object.Class
	Threshold   float64
}

// NewIntersecting decodes {"targetClass": uint32, "threshold": float64}
// params. Threshold defaults to 0 (any overlap counts) when omitted.
func NewIntersecting(params []byte) (executor.Command, error) {
	var p struct {
		TargetClass object.Class `json:"targetClass"`
		Threshold   float64      `json:"threshold"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return &Intersecting{TargetClass: p.TargetClass, Threshold: p.Threshold}, nil
}

func (i *Intersecting) Name() string               { return "intersecting" }
func (i *Intersecting) Input() executor.InputType   { return executor.InputObjects }
func (i *Intersecting) Output() executor.OutputType { return executor.OutputUnchanged }

func (i *Intersecting) Execute(ctx *executor.Context) error {
	if ctx.Atom == nil {
		return nil
	}
	candidates := ctx.Atom.ByClass(i.TargetClass)
	for _, o := range ctx.Active.Objects {
		var hits []object.ID
		for _, c := range candidates {
			if c.ObjectId == o.ObjectId {
				continue
			}
			if !boundingBoxesOverlap(o, c) {
				continue
			}
			if overlapFractionOfA(o, c) >= i.Threshold {
				hits = append(hits, c.ObjectId)
			}
		}
		if len(hits) > 0 {
			if o.IntersectingByClass == nil {
				o.IntersectingByClass = map[object.Class][]object.ID{}
			}
			o.IntersectingByClass[i.TargetClass] = hits
		}
	}
	return nil
}

func boundingBoxesOverlap(a, b *object.Object) bool {
	ar, br := a.BoundingBox, b.BoundingBox
	return ar.X < br.X+br.Width && br.X < ar.X+ar.Width && ar.Y < br.Y+br.Height && br.Y < ar.Y+ar.Height
}

// overlapFractionOfA computes |A∩B| / |A|, the fraction of a's own
// area covered by b's mask. Unlike object's own tracking-id overlap
// test, the denominator here is always a's area, not the smaller of
// the two — intersection tagging is asymmetric by nature (a tags b,
// not the reverse).
func overlapFractionOfA(a, b *object.Object) float64 {
	ar, br := a.BoundingBox, b.BoundingBox
	x0, y0 := max(ar.X, br.X), max(ar.Y, br.Y)
	x1, y1 := min(ar.X+ar.Width, br.X+br.Width), min(ar.Y+ar.Height, br.Y+br.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	intersection := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if a.Mask.Get(x-ar.X, y-ar.Y) && b.Mask.Get(x-br.X, y-br.Y) {
				intersection++
			}
		}
	}
	if intersection == 0 {
		return 0
	}
	areaA := a.Mask.PopCount()
	if areaA == 0 {
		return 0
	}
	return float64(intersection) / float64(areaA)
}
