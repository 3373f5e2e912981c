package cross

import (
	"encoding/json"
	"math"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/object"
)

// Distance measures center-center and surface-surface distances from
// every active object to every object of TargetClass.
type Distance struct {
	TargetClass object.Class
}

// NewDistance decodes {"targetClass": uint32} params.
func NewDistance(params []byte) (executor.Command, error) {
	var p struct {
		TargetClass object.Class `json:"targetClass"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return &Distance{TargetClass: p.TargetClass}, nil
}

func (d *Distance) Name() string               { return "distance" }
func (d *Distance) Input() executor.InputType   { return executor.InputObjects }
func (d *Distance) Output() executor.OutputType { return executor.OutputUnchanged }

func (d *Distance) Execute(ctx *executor.Context) error {
	if ctx.Atom == nil {
		return nil
	}
	candidates := ctx.Atom.ByClass(d.TargetClass)
	for _, o := range ctx.Active.Objects {
		var results []object.Distance
		oc := center(o)
		for _, c := range candidates {
			if c.ObjectId == o.ObjectId {
				continue
			}
			cc := center(c)
			centerDist := euclid(oc, cc)
			csMin, csMax := surfaceDistanceBounds(oc, c.Contour, c.BoundingBox)
			scMin, scMax := surfaceSurfaceBounds(o.Contour, o.BoundingBox, c.Contour, c.BoundingBox)
			results = append(results, object.Distance{
				CenterCenter:      centerDist,
				CenterSurfaceMin:  csMin,
				CenterSurfaceMax:  csMax,
				SurfaceSurfaceMin: scMin,
				SurfaceSurfaceMax: scMax,
				FromId:            o.ObjectId,
				ToId:              c.ObjectId,
			})
		}
		if len(results) > 0 {
			if o.DistanceByClass == nil {
				o.DistanceByClass = map[object.Class][]object.Distance{}
			}
			o.DistanceByClass[d.TargetClass] = results
		}
	}
	return nil
}

func center(o *object.Object) imgbuf.Point {
	return imgbuf.Point{X: o.BoundingBox.X + o.BoundingBox.Width/2, Y: o.BoundingBox.Y + o.BoundingBox.Height/2}
}

func euclid(a, b imgbuf.Point) float64 {
	dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// surfaceDistanceBounds returns the min/max distance from point p to
// contour's vertices (in full-image coordinates, offset by bbox).
func surfaceDistanceBounds(p imgbuf.Point, contour []imgbuf.Point, bbox imgbuf.Rect) (float64, float64) {
	if len(contour) == 0 {
		c := imgbuf.Point{X: bbox.X + bbox.Width/2, Y: bbox.Y + bbox.Height/2}
		d := euclid(p, c)
		return d, d
	}
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, v := range contour {
		full := imgbuf.Point{X: bbox.X + v.X, Y: bbox.Y + v.Y}
		d := euclid(p, full)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// surfaceSurfaceBounds returns the min/max distance between two
// contours' vertices (full-image coordinates).
func surfaceSurfaceBounds(ac []imgbuf.Point, abbox imgbuf.Rect, bc []imgbuf.Point, bbbox imgbuf.Rect) (float64, float64) {
	if len(ac) == 0 || len(bc) == 0 {
		ca := imgbuf.Point{X: abbox.X + abbox.Width/2, Y: abbox.Y + abbox.Height/2}
		cb := imgbuf.Point{X: bbbox.X + bbbox.Width/2, Y: bbbox.Y + bbbox.Height/2}
		d := euclid(ca, cb)
		return d, d
	}
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, av := range ac {
		pa := imgbuf.Point{X: abbox.X + av.X, Y: abbox.Y + av.Y}
		for _, bv := range bc {
			pb := imgbuf.Point{X: bbbox.X + bv.X, Y: bbbox.Y + bv.Y}
			d := euclid(pa, pb)
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
	}
	return min, max
}
