package commands

import (
	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/settings"
)

// Build resolves one pipeline's declared steps into the ordered Command chain executor.Run walks.
func Build(registry *executor.Registry, steps []settings.CommandSpec) ([]executor.Command, error) {
	out := make([]executor.Command, 0, len(steps))
	for _, step := range steps {
		cmd, err := registry.Build(step.Command, step.Params)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}
