// Package preprocess implements the IMAGE->IMAGE command family
//: blur/smoothing, rolling-ball background subtraction,
// channel subtraction, and edge detection. Every command here accepts
// and leaves an IMAGE slot (executor.OutputUnchanged).
package preprocess

import (
	"encoding/json"
	"math"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// GaussianBlur applies a separable Gaussian kernel: build a 1-D
// kernel, convolve rows then columns.
type GaussianBlur struct {
	Sigma float64
}

// NewGaussianBlur decodes {"sigma": float64} params, defaulting to 1.0.
func NewGaussianBlur(params []byte) (executor.Command, error) {
	var p struct {
		Sigma float64 `json:"sigma"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	if p.Sigma <= 0 {
		p.Sigma = 1.0
	}
	return &GaussianBlur{Sigma: p.Sigma}, nil
}

func (g *GaussianBlur) Name() string                 { return "gaussian_blur" }
func (g *GaussianBlur) Input() executor.InputType     { return executor.InputImage }
func (g *GaussianBlur) Output() executor.OutputType   { return executor.OutputUnchanged }

func (g *GaussianBlur) Execute(ctx *executor.Context) error {
	img := ctx.Active.Image
	kernel := gaussianKernel(g.Sigma)
	horiz := convolve1D(img, kernel, true)
	blurred := convolve1D(horiz, kernel, false)
	ctx.SetImage(blurred)
	return nil
}

// gaussianKernel builds a normalized 1-D kernel spanning +/-3 sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolve1D applies kernel along rows (horizontal=true) or columns,
// clamping sample reads at the image edge.
func convolve1D(img *imgbuf.ImageBuffer, kernel []float64, horizontal bool) *imgbuf.ImageBuffer {
	out := imgbuf.NewImageBuffer(img.Width, img.Height, img.Depth, img.Channels, img.Origin)
	radius := len(kernel) / 2
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for ch := 0; ch < img.Channels; ch++ {
				sum := 0.0
				for k := -radius; k <= radius; k++ {
					sx, sy := x, y
					if horizontal {
						sx = clampInt(x+k, 0, img.Width-1)
					} else {
						sy = clampInt(y+k, 0, img.Height-1)
					}
					sum += img.At(sx, sy, ch) * kernel[k+radius]
				}
				out.Set(x, y, ch, sum)
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
