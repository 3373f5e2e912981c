// Package measure implements the OBJECTS->OBJECTS intensity
// measurement command:
// row-major accumulation order, lower-middle median for even-count
// samples, Bessel-corrected (n-1) sample standard deviation.
package measure

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/object"
)

// Intensity measures one channel's pixel statistics within each
// active object's mask.
type Intensity struct {
	ChannelIndex int
}

// NewIntensity decodes {"channelIndex": int} params.
func NewIntensity(params []byte) (executor.Command, error) {
	var p struct {
		ChannelIndex int `json:"channelIndex"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return &Intensity{ChannelIndex: p.ChannelIndex}, nil
}

func (m *Intensity) Name() string               { return "measure_intensity" }
func (m *Intensity) Input() executor.InputType   { return executor.InputObjects }
func (m *Intensity) Output() executor.OutputType { return executor.OutputUnchanged }

func (m *Intensity) Execute(ctx *executor.Context) error {
	img, err := ctx.ReadChannel(m.ChannelIndex)
	if err != nil {
		return err
	}
	for _, o := range ctx.Active.Objects {
		o.IntensityByChannel[m.ChannelIndex] = measure(o, img)
	}
	return nil
}

// measure samples img's values under o's mask in row-major order,
// matching the package's deterministic accumulation rule.
func measure(o *object.Object, img interface {
	At(x, y, ch int) float64
}) object.IntensityStats {
	bbox := o.BoundingBox
	var values []float64
	var sum float64
	min, max := math.MaxFloat64, -math.MaxFloat64

	for y := 0; y < bbox.Height; y++ {
		for x := 0; x < bbox.Width; x++ {
			if !o.Mask.Get(x, y) {
				continue
			}
			v := img.At(bbox.X+x, bbox.Y+y, 0)
			values = append(values, v)
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if len(values) == 0 {
		return object.IntensityStats{}
	}

	avg := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - avg
		variance += d * d
	}
	stddev := 0.0
	if len(values) > 1 {
		stddev = math.Sqrt(variance / float64(len(values)-1))
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := sorted[(len(sorted)-1)/2] // lower-middle for even counts

	return object.IntensityStats{Sum: sum, Min: min, Max: max, Avg: avg, Median: median, Stddev: stddev}
}
