package plane

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/imgbuf"
)

// baseSource is the subset of Source a raw decoder needs to implement;
// ProjectingPlaneSource derives ReadProjection from it generically, so
// simple decoders need not each reimplement every ProjectionKind.
type baseSource interface {
	Enumerate(ctx context.Context, path string) (ImageInventory, error)
	Read(ctx context.Context, plane PlaneId, tile TileId) (*imgbuf.ImageBuffer, error)
	Ome(ctx context.Context, seriesIndex int) (OmeInfo, error)
}

// ProjectingPlaneSource wraps a baseSource, adding a generic
// readProjection built from repeated Read calls plus an optional
// golang.org/x/time/rate limiter so many concurrent workers don't
// saturate decoder I/O.
type ProjectingPlaneSource struct {
	base    baseSource
	limiter *rate.Limiter
}

// NewProjectingPlaneSource wraps base. If limiter is nil, reads are unthrottled.
func NewProjectingPlaneSource(base baseSource, limiter *rate.Limiter) *ProjectingPlaneSource {
	return &ProjectingPlaneSource{base: base, limiter: limiter}
}

func (p *ProjectingPlaneSource) Enumerate(ctx context.Context, path string) (ImageInventory, error) {
	return p.base.Enumerate(ctx, path)
}

func (p *ProjectingPlaneSource) Ome(ctx context.Context, seriesIndex int) (OmeInfo, error) {
	return p.base.Ome(ctx, seriesIndex)
}

func (p *ProjectingPlaneSource) Read(ctx context.Context, id PlaneId, tile TileId) (*imgbuf.ImageBuffer, error) {
	if err := p.throttle(ctx); err != nil {
		return nil, err
	}
	return p.base.Read(ctx, id, tile)
}

// ReadProjection collapses zRange on channel c by repeatedly calling
// Read across the z-range and reducing, per kind. ProjectionAvg
// accumulates in 32-bit float and is rounded and saturated back to the
// source plane's depth on the final pass.
func (p *ProjectingPlaneSource) ReadProjection(ctx context.Context, c int, zRange ZRange, t int, tile TileId, kind ProjectionKind) (*imgbuf.ImageBuffer, error) {
	if zRange.End < zRange.Start {
		return nil, errs.New(errs.CodePlaneOutOfRange, fmt.Sprintf("empty z range [%d,%d]", zRange.Start, zRange.End))
	}

	if kind == ProjectionNone || kind == ProjectionMiddle {
		z := zRange.Start
		if kind == ProjectionMiddle {
			z = zRange.Start + (zRange.End-zRange.Start)/2
		}
		return p.Read(ctx, PlaneId{CStack: c, ZStack: z, TStack: t}, tile)
	}

	first, err := p.Read(ctx, PlaneId{CStack: c, ZStack: zRange.Start, TStack: t}, tile)
	if err != nil {
		return nil, err
	}

	acc := imgbuf.NewImageBuffer(first.Width, first.Height, imgbuf.Depth32, first.Channels, first.Origin)
	copy(acc.Pix, first.Pix)
	sourceDepth := first.Depth

	for z := zRange.Start + 1; z <= zRange.End; z++ {
		plane, err := p.Read(ctx, PlaneId{CStack: c, ZStack: z, TStack: t}, tile)
		if err != nil {
			return nil, err
		}
		for i, v := range plane.Pix {
			switch kind {
			case ProjectionMax:
				if v > acc.Pix[i] {
					acc.Pix[i] = v
				}
			case ProjectionMin:
				if v < acc.Pix[i] {
					acc.Pix[i] = v
				}
			case ProjectionAvg:
				acc.Pix[i] += v
			}
		}
	}

	if kind == ProjectionAvg {
		n := float64(zRange.End - zRange.Start + 1)
		for i := range acc.Pix {
			acc.Pix[i] /= n
		}
	}

	out := imgbuf.NewImageBuffer(acc.Width, acc.Height, sourceDepth, acc.Channels, acc.Origin)
	for i, v := range acc.Pix {
		if kind == ProjectionAvg && sourceDepth != imgbuf.Depth32 {
			v = math.Round(v)
		}
		out.Pix[i] = out.Saturate(v)
	}
	return out, nil
}

func (p *ProjectingPlaneSource) throttle(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.CodeCancelled, "plane read throttle wait cancelled", err)
	}
	return nil
}
