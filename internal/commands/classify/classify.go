// Package classify implements the OBJECTS->OBJECTS command family:
// assigning a Class to every object currently active,
// either by a fixed rule or by delegating to an injected Segmenter
// capability (an AI classification backend, not something this package implements).
package classify

import (
	"encoding/json"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/object"
)

// Segmenter is the AI classification capability the engine consumes.
// Implementations score each object's cropped mask and
// return the winning class.
type Segmenter interface {
	Classify(mask *object.Object) (object.Class, float64, error)
}

// ClassifyByRule assigns a fixed class to every active object, or — if
// Segmenter is set — delegates per-object classification to it and
// records the returned confidence.
type ClassifyByRule struct {
	ClassId   object.Class
	Segmenter Segmenter
}

// NewClassifyByRule decodes {"classId": uint32} params. The Segmenter
// capability, when used, is wired by the caller after construction
// (it is a runtime collaborator, not JSON-serializable configuration).
func NewClassifyByRule(params []byte) (executor.Command, error) {
	var p struct {
		ClassId object.Class `json:"classId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return &ClassifyByRule{ClassId: p.ClassId}, nil
}

func (c *ClassifyByRule) Name() string               { return "classify" }
func (c *ClassifyByRule) Input() executor.InputType   { return executor.InputObjects }
func (c *ClassifyByRule) Output() executor.OutputType { return executor.OutputUnchanged }

func (c *ClassifyByRule) Execute(ctx *executor.Context) error {
	for _, o := range ctx.Active.Objects {
		if c.Segmenter == nil {
			o.Class = c.ClassId
			continue
		}
		class, confidence, err := c.Segmenter.Classify(o)
		if err != nil {
			return err
		}
		o.Class = class
		o.Confidence = confidence
	}
	return nil
}
