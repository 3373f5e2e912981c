// Package planetest provides an in-memory plane.Source fixture for
// tests that need a fully deterministic, synchronous decoder.
package planetest

import (
	"context"
	"fmt"

	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/plane"
)

// Fake is an in-memory plane.Source backed by caller-supplied planes,
// keyed by (c, z, t). All planes for a given fixture share one series
// (series 0) of fixed width/height.
type Fake struct {
	Width, Height int
	Depth         imgbuf.Depth
	Series        plane.SeriesInfo
	planes        map[[3]int]*imgbuf.ImageBuffer
}

// New builds an empty fixture of the given shape.
func New(width, height int, depth imgbuf.Depth, zCount, tCount, cCount int) *Fake {
	f := &Fake{
		Width:  width,
		Height: height,
		Depth:  depth,
		planes: map[[3]int]*imgbuf.ImageBuffer{},
	}
	f.Series = plane.SeriesInfo{
		SeriesIndex: 0,
		Width:       width,
		Height:      height,
		ZCount:      zCount,
		TCount:      tCount,
		CCount:      cCount,
		TileGrid: plane.TileGrid{
			SeriesIndex: 0,
			TileWidth:   width,
			TileHeight:  height,
			CountX:      1,
			CountY:      1,
		},
	}
	return f
}

// SetPlane installs buf as the content at (c, z, t).
func (f *Fake) SetPlane(c, z, t int, buf *imgbuf.ImageBuffer) {
	f.planes[[3]int{c, z, t}] = buf
}

// Fill installs a uniform-intensity plane at (c, z, t).
func (f *Fake) Fill(c, z, t int, value float64) *imgbuf.ImageBuffer {
	buf := imgbuf.NewImageBuffer(f.Width, f.Height, f.Depth, 1, imgbuf.Point{})
	for i := range buf.Pix {
		buf.Pix[i] = value
	}
	f.SetPlane(c, z, t, buf)
	return buf
}

func (f *Fake) Enumerate(ctx context.Context, path string) (plane.ImageInventory, error) {
	return plane.ImageInventory{Path: path, Series: []plane.SeriesInfo{f.Series}}, nil
}

func (f *Fake) Ome(ctx context.Context, seriesIndex int) (plane.OmeInfo, error) {
	if seriesIndex != 0 {
		return plane.OmeInfo{}, errs.New(errs.CodePlaneOutOfRange, fmt.Sprintf("no series %d", seriesIndex))
	}
	return plane.OmeInfo{Series: f.Series}, nil
}

func (f *Fake) Read(ctx context.Context, id plane.PlaneId, tile plane.TileId) (*imgbuf.ImageBuffer, error) {
	buf, ok := f.planes[[3]int{id.CStack, id.ZStack, id.TStack}]
	if !ok {
		return nil, errs.New(errs.CodePlaneOutOfRange, fmt.Sprintf("no plane at %+v", id))
	}
	if tile.TileWidth == 0 {
		tile.TileWidth, tile.TileHeight = f.Width, f.Height
	}
	cropped := imgbuf.NewImageBuffer(tile.TileWidth, tile.TileHeight, buf.Depth, buf.Channels, imgbuf.Point{X: tile.TileX * tile.TileWidth, Y: tile.TileY * tile.TileHeight})
	for y := 0; y < tile.TileHeight; y++ {
		for x := 0; x < tile.TileWidth; x++ {
			srcX, srcY := tile.TileX*tile.TileWidth+x, tile.TileY*tile.TileHeight+y
			if srcX >= buf.Width || srcY >= buf.Height {
				return nil, errs.New(errs.CodePlaneOutOfRange, fmt.Sprintf("tile %+v out of bounds", tile))
			}
			for ch := 0; ch < buf.Channels; ch++ {
				cropped.Set(x, y, ch, buf.At(srcX, srcY, ch))
			}
		}
	}
	return cropped, nil
}

// ReadProjection is delegated to a plane.ProjectingPlaneSource wrapping
// this fixture, so tests exercise the same generic reducer production uses.
func (f *Fake) ReadProjection(ctx context.Context, c int, zRange plane.ZRange, t int, tile plane.TileId, kind plane.ProjectionKind) (*imgbuf.ImageBuffer, error) {
	return plane.NewProjectingPlaneSource(f, nil).ReadProjection(ctx, c, zRange, t, tile, kind)
}
