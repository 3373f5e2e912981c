// Package morphology implements the BINARY->BINARY command family:
// erode, dilate, open (erode then dilate), close
// (dilate then erode), over a square structuring element.
package morphology

import (
	"encoding/json"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// Op selects the morphological operation.
type Op string

const (
	OpErode  Op = "ERODE"
	OpDilate Op = "DILATE"
	OpOpen   Op = "OPEN"
	OpClose  Op = "CLOSE"
)

// Morphology applies Op with a square structuring element of the
// given radius.
type Morphology struct {
	Op     Op
	Radius int
}

// NewMorphology decodes {"op": string, "radius": int} params.
func NewMorphology(params []byte) (executor.Command, error) {
	var p struct {
		Op     Op  `json:"op"`
		Radius int `json:"radius"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Radius <= 0 {
		p.Radius = 1
	}
	if p.Op == "" {
		p.Op = OpErode
	}
	return &Morphology{Op: p.Op, Radius: p.Radius}, nil
}

func (m *Morphology) Name() string               { return "morphology" }
func (m *Morphology) Input() executor.InputType   { return executor.InputBinary }
func (m *Morphology) Output() executor.OutputType { return executor.OutputUnchanged }

func (m *Morphology) Execute(ctx *executor.Context) error {
	mask := ctx.Active.Binary
	switch m.Op {
	case OpErode:
		ctx.SetBinary(erode(mask, m.Radius))
	case OpDilate:
		ctx.SetBinary(dilate(mask, m.Radius))
	case OpOpen:
		ctx.SetBinary(dilate(erode(mask, m.Radius), m.Radius))
	case OpClose:
		ctx.SetBinary(erode(dilate(mask, m.Radius), m.Radius))
	}
	return nil
}

// erode clears a pixel unless every pixel within radius is set.
func erode(m *imgbuf.BinaryMask, radius int) *imgbuf.BinaryMask {
	out := imgbuf.NewBinaryMask(m.Width, m.Height, m.Origin)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Get(x, y) {
				continue
			}
			all := true
			for dy := -radius; dy <= radius && all; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height || !m.Get(nx, ny) {
						all = false
						break
					}
				}
			}
			out.Set(x, y, all)
		}
	}
	return out
}

// dilate sets a pixel if any pixel within radius is set.
func dilate(m *imgbuf.BinaryMask, radius int) *imgbuf.BinaryMask {
	out := imgbuf.NewBinaryMask(m.Width, m.Height, m.Origin)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			any := false
			for dy := -radius; dy <= radius && !any; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < m.Width && ny < m.Height && m.Get(nx, ny) {
						any = true
						break
					}
				}
			}
			out.Set(x, y, any)
		}
	}
	return out
}
