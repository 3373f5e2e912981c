package settings

import (
	"fmt"

	"github.com/imagec/engine/internal/errs"
)

// Validate enforces a run's start() preconditions: non-empty
// pipeline list, each pipeline's declared channel exists, and the
// classification set covers every class a pipeline references.
func Validate(s *AnalyzeSettings, availableChannels int) error {
	enabled := 0
	for _, p := range s.Pipelines {
		if !p.Meta.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errs.New(errs.CodeSettingsInvalid, "no enabled pipelines declared")
	}

	for _, p := range s.Pipelines {
		if p.Meta.Disabled {
			continue
		}
		if p.PipelineSetup.CStackIndex >= availableChannels {
			return errs.New(errs.CodeSettingsInvalid,
				fmt.Sprintf("pipeline %q declares channel %d but image has %d channels", p.Meta.UID, p.PipelineSetup.CStackIndex, availableChannels)).
				WithDetail("pipelineUid", p.Meta.UID)
		}
		if _, ok := s.ProjectSettings.Classification.ByID(p.PipelineSetup.DefaultClassId); !ok {
			return errs.New(errs.CodeSettingsInvalid,
				fmt.Sprintf("pipeline %q declares defaultClassId %d not present in the classification set", p.Meta.UID, p.PipelineSetup.DefaultClassId)).
				WithDetail("pipelineUid", p.Meta.UID)
		}
	}
	return nil
}
