package classify

import (
	"encoding/json"
	"math"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/object"
)

// ObjectFilter marks objects outside a declared size/circularity range
// as invalid rather than removing them, so downstream measurement and
// export still see a complete, stable ObjectId range.
type ObjectFilter struct {
	MinSize, MaxSize               int
	MinCircularity, MaxCircularity float64
	ExcludeAtEdges                 bool
}

// NewObjectFilter decodes {"minSize", "maxSize", "minCircularity",
// "maxCircularity", "excludeAtEdges"} params. A zero
// MaxSize/MaxCircularity means "no upper bound".
func NewObjectFilter(params []byte) (executor.Command, error) {
	var p struct {
		MinSize        int     `json:"minSize"`
		MaxSize        int     `json:"maxSize"`
		MinCircularity float64 `json:"minCircularity"`
		MaxCircularity float64 `json:"maxCircularity"`
		ExcludeAtEdges bool    `json:"excludeAtEdges"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.MaxSize == 0 {
		p.MaxSize = math.MaxInt32
	}
	if p.MaxCircularity == 0 {
		p.MaxCircularity = 1.0
	}
	return &ObjectFilter{
		MinSize: p.MinSize, MaxSize: p.MaxSize,
		MinCircularity: p.MinCircularity, MaxCircularity: p.MaxCircularity,
		ExcludeAtEdges: p.ExcludeAtEdges,
	}, nil
}

func (f *ObjectFilter) Name() string               { return "object_filter" }
func (f *ObjectFilter) Input() executor.InputType   { return executor.InputObjects }
func (f *ObjectFilter) Output() executor.OutputType { return executor.OutputUnchanged }

func (f *ObjectFilter) Execute(ctx *executor.Context) error {
	ome, err := ctx.Source.Ome(ctx.Ctx, ctx.Plane.SeriesIndex)
	if err != nil {
		return err
	}
	width, height := ome.Series.Width, ome.Series.Height

	for _, o := range ctx.Active.Objects {
		size := o.Mask.PopCount()
		if size < f.MinSize || size > f.MaxSize {
			o.Validity |= object.ValidityManualOutOfRangeSize
		}
		circ := circularity(o)
		if circ < f.MinCircularity || circ > f.MaxCircularity {
			o.Validity |= object.ValidityManualOutOfRangeCircularity
		}
		if size == 0 {
			o.Validity |= object.ValidityNoCenterOfMass
		}
		if atEdge(o.BoundingBox, width, height) {
			o.Validity |= object.ValidityAtEdge
			if f.ExcludeAtEdges {
				o.Validity |= object.ValidityFilteredByRule
			}
		}
	}
	return nil
}

// atEdge reports whether box touches any of the image's four borders.
func atEdge(box imgbuf.Rect, width, height int) bool {
	return box.X <= 0 || box.Y <= 0 || box.X+box.Width >= width || box.Y+box.Height >= height
}

// circularity is 4*pi*area / perimeter^2, using the contour length as
// the perimeter approximation (1.0 for a perfect circle).
func circularity(o *object.Object) float64 {
	area := float64(o.Mask.PopCount())
	if area == 0 || len(o.Contour) < 3 {
		return 0
	}
	perimeter := 0.0
	for i := range o.Contour {
		a, b := o.Contour[i], o.Contour[(i+1)%len(o.Contour)]
		dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
		perimeter += math.Sqrt(dx*dx + dy*dy)
	}
	if perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}
