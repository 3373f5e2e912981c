package segment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/plane/planetest"
)

func bimodalImage() *imgbuf.ImageBuffer {
	img := imgbuf.NewImageBuffer(100, 1, imgbuf.Depth8, 1, imgbuf.Point{})
	for x := 0; x < 50; x++ {
		img.Set(x, 0, 0, 20)
	}
	for x := 50; x < 100; x++ {
		img.Set(x, 0, 0, 200)
	}
	return img
}

func newCtx(t *testing.T) *executor.Context {
	t.Helper()
	f := planetest.New(100, 1, imgbuf.Depth8, 1, 1, 1)
	return executor.NewContext(context.Background(), f, object.NewAtom(nil), logging.Default(), "p1",
		plane.PlaneId{}, plane.TileId{}, 0, object.Class(1))
}

func TestManualThresholdUsesExactCut(t *testing.T) {
	ctx := newCtx(t)
	ctx.SetImage(bimodalImage())
	cmd, err := NewThreshold([]byte(`{"mode": "MANUAL", "manualCut": 100}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	mask := ctx.Active.Binary
	assert.False(t, mask.Get(0, 0))
	assert.True(t, mask.Get(99, 0))
	assert.Equal(t, 50, mask.PopCount())
}

func TestOtsuSeparatesBimodalHistogram(t *testing.T) {
	ctx := newCtx(t)
	ctx.SetImage(bimodalImage())
	cmd, err := NewThreshold([]byte(`{"mode": "OTSU"}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	mask := ctx.Active.Binary
	assert.False(t, mask.Get(0, 0))
	assert.True(t, mask.Get(99, 0))
}

func TestTriangleSeparatesBimodalHistogram(t *testing.T) {
	ctx := newCtx(t)
	ctx.SetImage(bimodalImage())
	cmd, err := NewThreshold([]byte(`{"mode": "TRIANGLE"}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	mask := ctx.Active.Binary
	assert.Equal(t, mask.Get(99, 0), true)
}

func TestUnknownModeFailsWithSegmentationFailed(t *testing.T) {
	_, err := NewThreshold([]byte(`{"mode": "NOT_A_MODE"}`))
	require.NoError(t, err) // decoding succeeds; failure surfaces at Execute
	cmd := &Threshold{Mode: "NOT_A_MODE"}
	ctx := newCtx(t)
	ctx.SetImage(bimodalImage())
	err = cmd.Execute(ctx)
	require.Error(t, err)
}
