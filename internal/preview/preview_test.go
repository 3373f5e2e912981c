package preview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/commands"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/plane/planetest"
	"github.com/imagec/engine/internal/settings"
)

func squareFixture() *planetest.Fake {
	f := planetest.New(100, 100, imgbuf.Depth8, 1, 1, 1)
	buf := f.Fill(0, 0, 0, 10)
	for y := 20; y < 80; y++ {
		for x := 20; x < 80; x++ {
			buf.Set(x, y, 0, 220)
		}
	}
	return f
}

func thresholdPipeline() settings.Pipeline {
	raw := []byte(`{
		"pipelines": [{
			"meta": {"uid": "pipe-1", "name": "threshold"},
			"pipelineSetup": {"cStackIndex": 0, "defaultClassId": 1},
			"pipelineSteps": [
				{"command": "threshold", "params": {"mode": "MANUAL", "manualCut": 128}},
				{"command": "object_filter", "params": {"minSize": 1}}
			]
		}]
	}`)
	s, err := settings.Parse(raw)
	if err != nil {
		panic(err)
	}
	return s.Pipelines[0]
}

func TestRunProducesObjectsFromBinaryTerminalSlot(t *testing.T) {
	fake := squareFixture()
	req := Request{
		Pipeline: object.PipelineID("pipe-1"),
		Spec:     thresholdPipeline(),
		Plane:    plane.PlaneId{SeriesIndex: 0, CStack: 0, ZStack: 0, TStack: 0},
		Tile:     plane.TileId{},
	}

	result, err := Run(context.Background(), fake, logging.Default(), commands.NewRegistry(), req)
	require.NoError(t, err)
	require.Len(t, result.Objects, 1)
	assert.Nil(t, result.Image)
	assert.Equal(t, object.Class(1), result.Objects[0].Class)
}

func TestRunSurfacesUnknownCommandError(t *testing.T) {
	spec := thresholdPipeline()
	spec.PipelineSteps = append(spec.PipelineSteps, settings.CommandSpec{Command: "does_not_exist"})

	req := Request{
		Pipeline: object.PipelineID("pipe-1"),
		Spec:     spec,
		Plane:    plane.PlaneId{SeriesIndex: 0, CStack: 0, ZStack: 0, TStack: 0},
	}

	_, err := Run(context.Background(), squareFixture(), logging.Default(), commands.NewRegistry(), req)
	require.Error(t, err)
}
