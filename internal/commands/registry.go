// Package commands wires every command family's Factory into an
// executor.Registry, resolving the names pipeline steps
// declare ("gaussian_blur", "threshold", ...) to concrete commands.
package commands

import (
	"github.com/imagec/engine/internal/commands/classify"
	"github.com/imagec/engine/internal/commands/cross"
	"github.com/imagec/engine/internal/commands/imagesaver"
	"github.com/imagec/engine/internal/commands/measure"
	"github.com/imagec/engine/internal/commands/morphology"
	"github.com/imagec/engine/internal/commands/preprocess"
	"github.com/imagec/engine/internal/commands/segment"
	"github.com/imagec/engine/internal/executor"
)

// NewRegistry builds the Registry every pipeline executes against.
func NewRegistry() *executor.Registry {
	r := executor.NewRegistry()
	r.Register("gaussian_blur", preprocess.NewGaussianBlur)
	r.Register("rolling_ball", preprocess.NewRollingBall)
	r.Register("subtract_channel", preprocess.NewSubtractChannel)
	r.Register("sobel_edge", preprocess.NewSobelEdge)
	r.Register("threshold", segment.NewThreshold)
	r.Register("morphology", morphology.NewMorphology)
	r.Register("classify", classify.NewClassifyByRule)
	r.Register("object_filter", classify.NewObjectFilter)
	r.Register("measure_intensity", measure.NewIntensity)
	r.Register("intersecting", cross.NewIntersecting)
	r.Register("distance", cross.NewDistance)
	r.Register("image_saver", imagesaver.NewImageSaver)
	return r
}
