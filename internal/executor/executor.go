package executor

import (
	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/object"
)

// Run executes one WorkUnit's command chain: seeds the
// active slot from the Plane Source, walks each command enforcing the
// input/output type contract, converts a BINARY slot into objects the
// moment a downstream command needs OBJECTS (or at the end of the
// chain if none does), and appends the result to the image's Object
// Atom.
func Run(ctx *Context, commands []Command) ([]*object.Object, error) {
	img, err := ctx.Source.ReadProjection(ctx.Ctx, ctx.Plane.CStack, ctx.ZRange, ctx.Plane.TStack, ctx.Tile, ctx.ZProjection)
	if err != nil {
		return nil, err
	}
	ctx.SetImage(img)

	for i, cmd := range commands {
		select {
		case <-ctx.Ctx.Done():
			return nil, errs.New(errs.CodeCancelled, "execution cancelled").
				WithDetail("stepIndex", i).
				WithDetail("pipelineUid", string(ctx.PipelineID))
		default:
		}
		if cmd.Input() == InputObjects && ctx.Active.Kind == SlotBinary {
			ctx.SetObjects(materialize(ctx))
		}
		if !cmd.Input().Accepts(ctx.Active.Kind) {
			return nil, errs.New(errs.CodeTypeContractViolation,
				"command "+cmd.Name()+" requires "+cmd.Input().String()+" but active slot is "+ctx.Active.Kind.String()).
				WithDetail("command", cmd.Name()).
				WithDetail("stepIndex", i).
				WithDetail("pipelineUid", string(ctx.PipelineID))
		}
		if err := cmd.Execute(ctx); err != nil {
			return nil, err
		}
	}

	objs := materialize(ctx)
	if ctx.Atom != nil {
		ctx.Atom.Append(ctx.PipelineID, objs)
	}
	return objs, nil
}

// Depth walks commands statically, without executing them, to compute
// the maximum number of simultaneously live ImageBuffers the chain
// needs — planner.ThreadBudget.PipelineDepthFactor. A
// command that reads a second channel (Input() == InputImageOrBinary
// combined with its own declared extra-read need) would raise this;
// today's command families never hold more than the active slot plus
// one freshly-read channel buffer at a time, so the static bound is 2
// whenever any command performs a cross-channel read, else 1.
func Depth(commands []Command, usesCrossChannelRead bool) int {
	if usesCrossChannelRead {
		return 2
	}
	return 1
}

func materialize(ctx *Context) []*object.Object {
	switch ctx.Active.Kind {
	case SlotObjects:
		return ctx.Active.Objects
	case SlotBinary:
		comps := object.ConnectedComponents(ctx.Active.Binary, ctx.Connectivity)
		objs := make([]*object.Object, 0, len(comps))
		for _, c := range comps {
			id := ctx.AllocObjectId()
			o := object.NewObject(id, ctx.DefaultClass, ctx.Plane, ctx.Tile, c.BoundingBox, c.Mask)
			o.Contour = object.ExtractContour(c.Mask)
			objs = append(objs, o)
		}
		return objs
	default:
		return nil
	}
}
