package preprocess

import (
	"encoding/json"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// RollingBall estimates a background surface as the local minimum
// over a square window of the given radius and subtracts it, a
// simplified rolling-ball background subtraction.
type RollingBall struct {
	Radius int
}

// NewRollingBall decodes {"radius": int} params, defaulting to 8.
func NewRollingBall(params []byte) (executor.Command, error) {
	var p struct {
		Radius int `json:"radius"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	if p.Radius <= 0 {
		p.Radius = 8
	}
	return &RollingBall{Radius: p.Radius}, nil
}

func (r *RollingBall) Name() string               { return "rolling_ball" }
func (r *RollingBall) Input() executor.InputType   { return executor.InputImage }
func (r *RollingBall) Output() executor.OutputType { return executor.OutputUnchanged }

func (r *RollingBall) Execute(ctx *executor.Context) error {
	img := ctx.Active.Image
	background := localMin(img, r.Radius)
	out := imgbuf.NewImageBuffer(img.Width, img.Height, img.Depth, img.Channels, img.Origin)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for ch := 0; ch < img.Channels; ch++ {
				out.Set(x, y, ch, img.At(x, y, ch)-background.At(x, y, ch))
			}
		}
	}
	ctx.SetImage(out)
	return nil
}

// localMin computes, for every pixel, the minimum sample within a
// (2*radius+1)^2 window, row-major accumulation order.
func localMin(img *imgbuf.ImageBuffer, radius int) *imgbuf.ImageBuffer {
	out := imgbuf.NewImageBuffer(img.Width, img.Height, img.Depth, img.Channels, img.Origin)
	for y := 0; y < img.Height; y++ {
		y0, y1 := clampInt(y-radius, 0, img.Height-1), clampInt(y+radius, 0, img.Height-1)
		for x := 0; x < img.Width; x++ {
			x0, x1 := clampInt(x-radius, 0, img.Width-1), clampInt(x+radius, 0, img.Width-1)
			for ch := 0; ch < img.Channels; ch++ {
				min := img.At(x0, y0, ch)
				for wy := y0; wy <= y1; wy++ {
					for wx := x0; wx <= x1; wx++ {
						if v := img.At(wx, wy, ch); v < min {
							min = v
						}
					}
				}
				out.Set(x, y, ch, min)
			}
		}
	}
	return out
}
