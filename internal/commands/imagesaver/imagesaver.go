// Package imagesaver implements the ALL->UNCHANGED command family:
// rendering the active IMAGE/BINARY/OBJECTS slot as a
// PNG control image, optionally overlaying object contours, and
// handing it to an artifact.Store.
package imagesaver

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/imagec/engine/internal/artifact"
	"github.com/imagec/engine/internal/executor"
)

// ImageSaver writes the active slot's visual representation to Store
// under a key derived from the pipeline/plane/tile.
type ImageSaver struct {
	Store         artifact.Store
	KeyPrefix     string
	DrawContours  bool
}

// NewImageSaver decodes {"keyPrefix": string, "drawContours": bool}
// params. Store is wired by the caller after construction, since it is
// a runtime collaborator, not JSON configuration.
func NewImageSaver(params []byte) (executor.Command, error) {
	var p struct {
		KeyPrefix    string `json:"keyPrefix"`
		DrawContours bool   `json:"drawContours"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	return &ImageSaver{KeyPrefix: p.KeyPrefix, DrawContours: p.DrawContours}, nil
}

func (s *ImageSaver) Name() string               { return "image_saver" }
func (s *ImageSaver) Input() executor.InputType   { return executor.InputAll }
func (s *ImageSaver) Output() executor.OutputType { return executor.OutputUnchanged }

func (s *ImageSaver) Execute(ctx *executor.Context) error {
	if s.Store == nil {
		return nil
	}
	rendered := s.render(ctx)
	if rendered == nil {
		return nil
	}
	key := fmt.Sprintf("%s/%s_z%d_t%d_tile%d_%d.png",
		s.KeyPrefix, ctx.PipelineID, ctx.Plane.ZStack, ctx.Plane.TStack, ctx.Tile.TileX, ctx.Tile.TileY)
	return s.Store.Write(ctx.Ctx, key, rendered)
}

func (s *ImageSaver) render(ctx *executor.Context) image.Image {
	switch ctx.Active.Kind {
	case executor.SlotImage:
		img := ctx.Active.Image
		out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
		maxVal := img.MaxValue()
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				v := img.At(x, y, 0) / maxVal * 65535
				out.SetGray16(x, y, color.Gray16{Y: uint16(clamp(v, 0, 65535))})
			}
		}
		return out
	case executor.SlotBinary:
		m := ctx.Active.Binary
		out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				if m.Get(x, y) {
					out.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		return out
	case executor.SlotObjects:
		return s.renderObjects(ctx)
	default:
		return nil
	}
}

func (s *ImageSaver) renderObjects(ctx *executor.Context) image.Image {
	objs := ctx.Active.Objects
	if len(objs) == 0 {
		return nil
	}
	w, h := ctx.Tile.TileWidth, ctx.Tile.TileHeight
	for _, o := range objs {
		if o.BoundingBox.X+o.BoundingBox.Width > w {
			w = o.BoundingBox.X + o.BoundingBox.Width
		}
		if o.BoundingBox.Y+o.BoundingBox.Height > h {
			h = o.BoundingBox.Y + o.BoundingBox.Height
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if !s.DrawContours {
		return out
	}
	for _, o := range objs {
		for _, p := range o.Contour {
			x, y := o.BoundingBox.X+p.X, o.BoundingBox.Y+p.Y
			if image.Pt(x, y).In(out.Bounds()) {
				out.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
