// Package executor implements the Pipeline Executor: a sequential
// command chain operating on one typed intermediate slot at a time,
// enforcing the input/output type contract between commands.
package executor

import (
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/object"
)

// SlotKind identifies which typed intermediate currently occupies the
// executor's active slot.
type SlotKind int

const (
	SlotEmpty SlotKind = iota
	SlotImage
	SlotBinary
	SlotObjects
	SlotHistogram
)

func (k SlotKind) String() string {
	switch k {
	case SlotImage:
		return "IMAGE"
	case SlotBinary:
		return "BINARY"
	case SlotObjects:
		return "OBJECTS"
	case SlotHistogram:
		return "HISTOGRAM"
	default:
		return "EMPTY"
	}
}

// Slot is the executor's single active value. Exactly one field is
// meaningful at a time, selected by Kind.
type Slot struct {
	Kind      SlotKind
	Image     *imgbuf.ImageBuffer
	Binary    *imgbuf.BinaryMask
	Objects   []*object.Object
	Histogram *imgbuf.Histogram
}

// InputType is a command's declared acceptable input slot kind.
type InputType int

const (
	InputAll InputType = iota
	InputImage
	InputBinary
	InputObjects
	InputImageOrBinary
)

// Accepts reports whether a slot of the given kind satisfies t.
func (t InputType) Accepts(kind SlotKind) bool {
	switch t {
	case InputAll:
		return true
	case InputImage:
		return kind == SlotImage
	case InputBinary:
		return kind == SlotBinary
	case InputObjects:
		return kind == SlotObjects
	case InputImageOrBinary:
		return kind == SlotImage || kind == SlotBinary
	default:
		return false
	}
}

func (t InputType) String() string {
	switch t {
	case InputImage:
		return "IMAGE"
	case InputBinary:
		return "BINARY"
	case InputObjects:
		return "OBJECTS"
	case InputImageOrBinary:
		return "IMAGE_OR_BINARY"
	default:
		return "ALL"
	}
}

// OutputType is a command's declared output slot kind, or Unchanged if
// the command mutates the active slot's content without changing its kind.
type OutputType int

const (
	OutputUnchanged OutputType = iota
	OutputImage
	OutputBinary
	OutputObjects
)
