package preprocess

import (
	"math"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// SobelEdge computes the Sobel gradient magnitude, single-channel in,
// single-channel out.
type SobelEdge struct{}

// NewSobelEdge takes no params.
func NewSobelEdge([]byte) (executor.Command, error) { return &SobelEdge{}, nil }

func (s *SobelEdge) Name() string               { return "sobel_edge" }
func (s *SobelEdge) Input() executor.InputType   { return executor.InputImage }
func (s *SobelEdge) Output() executor.OutputType { return executor.OutputUnchanged }

var sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
var sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

func (s *SobelEdge) Execute(ctx *executor.Context) error {
	img := ctx.Active.Image
	out := imgbuf.NewImageBuffer(img.Width, img.Height, img.Depth, img.Channels, img.Origin)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for ch := 0; ch < img.Channels; ch++ {
				var gx, gy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := img.At(clampInt(x+kx, 0, img.Width-1), clampInt(y+ky, 0, img.Height-1), ch)
						gx += v * sobelX[ky+1][kx+1]
						gy += v * sobelY[ky+1][kx+1]
					}
				}
				out.Set(x, y, ch, math.Sqrt(gx*gx+gy*gy))
			}
		}
	}
	ctx.SetImage(out)
	return nil
}
