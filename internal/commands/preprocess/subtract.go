package preprocess

import (
	"encoding/json"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// SubtractChannel reads another channel at the same z/t/tile and
// subtracts it sample-for-sample from the active image.
type SubtractChannel struct {
	ChannelIndex int
}

// NewSubtractChannel decodes {"channelIndex": int} params.
func NewSubtractChannel(params []byte) (executor.Command, error) {
	var p struct {
		ChannelIndex int `json:"channelIndex"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return &SubtractChannel{ChannelIndex: p.ChannelIndex}, nil
}

func (s *SubtractChannel) Name() string               { return "subtract_channel" }
func (s *SubtractChannel) Input() executor.InputType   { return executor.InputImage }
func (s *SubtractChannel) Output() executor.OutputType { return executor.OutputUnchanged }

func (s *SubtractChannel) Execute(ctx *executor.Context) error {
	other, err := ctx.ReadChannel(s.ChannelIndex)
	if err != nil {
		return err
	}
	img := ctx.Active.Image
	out := imgbuf.NewImageBuffer(img.Width, img.Height, img.Depth, img.Channels, img.Origin)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for ch := 0; ch < img.Channels; ch++ {
				out.Set(x, y, ch, img.At(x, y, ch)-other.At(x, y, ch%other.Channels))
			}
		}
	}
	ctx.SetImage(out)
	return nil
}
