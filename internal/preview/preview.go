// Package preview implements the Preview Path: a
// single synchronous WorkUnit run against an in-memory result, sharing
// internal/executor and internal/commands bit-for-bit with batch mode.
// There is no Result Sink involved and no worker pool — the live
// editor calls Run directly on its own goroutine and waits.
package preview

import (
	"context"

	"github.com/imagec/engine/internal/commands"
	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/settings"
)

// Result is everything the live editor needs to redraw the ROI
// overlay after one pipeline edit: the edited image (if the chain's
// final active slot is still IMAGE) and the final object list.
type Result struct {
	Objects []*object.Object
	Image   *imgbuf.ImageBuffer
}

// Request describes the single WorkUnit to preview.
type Request struct {
	Pipeline object.PipelineID
	Spec     settings.Pipeline
	Plane    plane.PlaneId
	Tile     plane.TileId
}

// Run builds one executor.Context from req and executes its pipeline
// steps against source, without touching the Result Sink or the Object
// Atom: no persistence, no multi-threading.
func Run(ctx context.Context, source plane.Source, log logging.Logger, registry *executor.Registry, req Request) (*Result, error) {
	cmds, err := commands.Build(registry, req.Spec.PipelineSteps)
	if err != nil {
		return nil, err
	}

	zRange := plane.ZRange{Start: req.Plane.ZStack, End: req.Plane.ZStack}
	projection := plane.ProjectionNone
	if req.Spec.PipelineSetup.ZStackHandling == settings.EachOne {
		projection = req.Spec.PipelineSetup.ZProjection
	}

	execCtx := executor.NewContext(ctx, source, nil, log, req.Pipeline, req.Plane, req.Tile, 1, req.Spec.PipelineSetup.DefaultClassId,
		executor.WithProjection(zRange, projection))

	objs, err := executor.Run(execCtx, cmds)
	if err != nil {
		return nil, err
	}

	result := &Result{Objects: objs}
	if execCtx.Active.Kind == executor.SlotImage {
		result.Image = execCtx.Active.Image
	}
	return result, nil
}
