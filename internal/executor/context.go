package executor

import (
	"context"

	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
)

// Context is the per-WorkUnit execution state threaded through a
// pipeline's command chain. One Context is built per
// WorkUnit and discarded after Run returns.
type Context struct {
	Ctx context.Context

	Source plane.Source
	Atom   *object.Atom
	Log    logging.Logger

	PipelineID   object.PipelineID
	Plane        plane.PlaneId
	Tile         plane.TileId
	ZRange       plane.ZRange
	ZProjection  plane.ProjectionKind
	DefaultClass object.Class
	Connectivity object.Connectivity

	PixelSizeXUm, PixelSizeYUm float64

	Active Slot

	nextObjectId object.ID
}

// Option configures a Context built by NewContext.
type Option func(*Context)

// WithProjection sets the z-range/kind the initial read collapses
// into. The default is a single-slice read at Plane.ZStack.
func WithProjection(zRange plane.ZRange, kind plane.ProjectionKind) Option {
	return func(c *Context) { c.ZRange, c.ZProjection = zRange, kind }
}

// WithPixelSize records the image's physical pixel size, in micrometers.
func WithPixelSize(xUm, yUm float64) Option {
	return func(c *Context) { c.PixelSizeXUm, c.PixelSizeYUm = xUm, yUm }
}

// WithConnectivity sets the 4- or 8-neighbor adjacency materialize
// uses when it labels a BINARY slot into objects. The default, when
// this option is omitted, is Connectivity8.
func WithConnectivity(c2 object.Connectivity) Option {
	return func(c *Context) { c.Connectivity = c2 }
}

// NewContext builds the execution state for one WorkUnit.
func NewContext(
	ctx context.Context,
	source plane.Source,
	atom *object.Atom,
	log logging.Logger,
	pipelineID object.PipelineID,
	p plane.PlaneId,
	tile plane.TileId,
	objectIdBase object.ID,
	defaultClass object.Class,
	opts ...Option,
) *Context {
	c := &Context{
		Ctx:          ctx,
		Source:       source,
		Atom:         atom,
		Log:          log,
		PipelineID:   pipelineID,
		Plane:        p,
		Tile:         tile,
		ZRange:       plane.ZRange{Start: p.ZStack, End: p.ZStack},
		ZProjection:  plane.ProjectionNone,
		DefaultClass: defaultClass,
		nextObjectId: objectIdBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AllocObjectId returns the next monotonically increasing objectId
// available to this WorkUnit.
func (c *Context) AllocObjectId() object.ID {
	id := c.nextObjectId
	c.nextObjectId++
	return id
}

// SetImage replaces the active slot with an IMAGE value.
func (c *Context) SetImage(img *imgbuf.ImageBuffer) { c.Active = Slot{Kind: SlotImage, Image: img} }

// SetBinary replaces the active slot with a BINARY value.
func (c *Context) SetBinary(m *imgbuf.BinaryMask) { c.Active = Slot{Kind: SlotBinary, Binary: m} }

// SetObjects replaces the active slot with an OBJECTS value.
func (c *Context) SetObjects(objs []*object.Object) {
	c.Active = Slot{Kind: SlotObjects, Objects: objs}
}

// SetHistogram replaces the active slot with a HISTOGRAM value.
func (c *Context) SetHistogram(h *imgbuf.Histogram) {
	c.Active = Slot{Kind: SlotHistogram, Histogram: h}
}

// ReadChannel reads another channel's plane at this WorkUnit's current
// z/t/tile, for commands that need a second channel (e.g. subtract_channel,
// measure_intensity) without changing the active slot.
func (c *Context) ReadChannel(cStack int) (*imgbuf.ImageBuffer, error) {
	return c.Source.ReadProjection(c.Ctx, cStack, c.ZRange, c.Plane.TStack, c.Tile, c.ZProjection)
}
