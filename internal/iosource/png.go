// Package iosource provides a minimal plane.Source backed by
// single-frame PNG files. OME/TIFF decoders are treated as an external
// collaborator implementing the same contract; this package is the
// reference decoder cmd/imagecd wires in so the binary is runnable
// end-to-end without depending on a third-party microscopy format
// library.
package iosource

import (
	"context"
	"image"
	"image/color"
	_ "image/png"
	"os"

	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/plane"
)

// PNGSource decodes one grayscale PNG file as a single-series,
// single-channel, single-plane image: cStack, zStack and tStack are
// always 0. It implements the Enumerate/Read/Ome subset
// plane.NewProjectingPlaneSource wraps to derive the full plane.Source
// contract, including z-projection (a no-op here since zCount is 1).
type PNGSource struct {
	path string
	img  image.Image
}

// Open decodes the PNG at path once; Read calls afterward are pure
// in-memory lookups, keeping the source read-only after construction.
func Open(path string) (*PNGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecodeError, "iosource: open "+path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecodeError, "iosource: decode "+path, err)
	}
	return &PNGSource{path: path, img: img}, nil
}

func (s *PNGSource) Enumerate(ctx context.Context, path string) (plane.ImageInventory, error) {
	bounds := s.img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	series := plane.SeriesInfo{
		SeriesIndex:   0,
		Width:         width,
		Height:        height,
		ZCount:        1,
		TCount:        1,
		CCount:        1,
		PyramidLevels: 1,
		TileGrid: plane.TileGrid{
			SeriesIndex: 0,
			TileWidth:   width,
			TileHeight:  height,
			CountX:      1,
			CountY:      1,
		},
		PixelSizeX: plane.PhysicalPixelSize{Value: 1, Unit: "Pixels"},
		PixelSizeY: plane.PhysicalPixelSize{Value: 1, Unit: "Pixels"},
	}
	return plane.ImageInventory{Path: path, Series: []plane.SeriesInfo{series}}, nil
}

func (s *PNGSource) Ome(ctx context.Context, seriesIndex int) (plane.OmeInfo, error) {
	if seriesIndex != 0 {
		return plane.OmeInfo{}, errs.New(errs.CodePlaneOutOfRange, "iosource: no series other than 0")
	}
	inv, err := s.Enumerate(ctx, s.path)
	if err != nil {
		return plane.OmeInfo{}, err
	}
	return plane.OmeInfo{Series: inv.Series[0]}, nil
}

func (s *PNGSource) Read(ctx context.Context, id plane.PlaneId, tile plane.TileId) (*imgbuf.ImageBuffer, error) {
	if id.CStack != 0 || id.ZStack != 0 || id.TStack != 0 {
		return nil, errs.New(errs.CodePlaneOutOfRange, "iosource: single-plane file has no coordinate other than (0,0,0)")
	}

	bounds := s.img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	tileW, tileH := tile.TileWidth, tile.TileHeight
	if tileW == 0 {
		tileW, tileH = width, height
	}

	origin := imgbuf.Point{X: tile.TileX * tileW, Y: tile.TileY * tileH}
	buf := imgbuf.NewImageBuffer(tileW, tileH, imgbuf.Depth8, 1, origin)

	for y := 0; y < tileH; y++ {
		for x := 0; x < tileW; x++ {
			srcX, srcY := origin.X+x+bounds.Min.X, origin.Y+y+bounds.Min.Y
			if srcX >= bounds.Max.X || srcY >= bounds.Max.Y {
				return nil, errs.New(errs.CodePlaneOutOfRange, "iosource: tile exceeds image bounds")
			}
			gray := color.Gray16Model.Convert(s.img.At(srcX, srcY)).(color.Gray16)
			buf.Set(x, y, 0, float64(gray.Y>>8))
		}
	}
	return buf, nil
}
