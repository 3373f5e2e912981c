package preprocess

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

func newCtx(t *testing.T, f *planetest.Fake) *executor.Context {
	t.Helper()
	return executor.NewContext(context.Background(), f, object.NewAtom(nil), logging.Default(), "p1",
		plane.PlaneId{}, plane.TileId{}, 0, object.Class(1))
}

func TestGaussianBlurReducesSpikeMagnitude(t *testing.T) {
	f := planetest.New(5, 5, imgbuf.Depth8, 1, 1, 1)
	buf := imgbuf.NewImageBuffer(5, 5, imgbuf.Depth8, 1, imgbuf.Point{})
	buf.Set(2, 2, 0, 255)
	f.SetPlane(0, 0, 0, buf)

	ctx := newCtx(t, f)
	ctx.SetImage(buf)

	cmd, err := NewGaussianBlur([]byte(`{"sigma": 1.0}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	assert.Less(t, ctx.Active.Image.At(2, 2, 0), 255.0)
	assert.Greater(t, ctx.Active.Image.At(2, 1, 0), 0.0)
}

func TestSobelEdgeZeroOnFlatImage(t *testing.T) {
	f := planetest.New(4, 4, imgbuf.Depth8, 1, 1, 1)
	buf := imgbuf.NewImageBuffer(4, 4, imgbuf.Depth8, 1, imgbuf.Point{})
	for i := range buf.Pix {
		buf.Pix[i] = 50
	}
	ctx := newCtx(t, f)
	ctx.SetImage(buf)

	cmd, err := NewSobelEdge(nil)
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	for _, v := range ctx.Active.Image.Pix {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestSubtractChannelReadsOtherChannel(t *testing.T) {
	f := planetest.New(2, 2, imgbuf.Depth8, 1, 1, 2)
	base := imgbuf.NewImageBuffer(2, 2, imgbuf.Depth8, 1, imgbuf.Point{})
	for i := range base.Pix {
		base.Pix[i] = 100
	}
	other := imgbuf.NewImageBuffer(2, 2, imgbuf.Depth8, 1, imgbuf.Point{})
	for i := range other.Pix {
		other.Pix[i] = 30
	}
	f.SetPlane(0, 0, 0, base)
	f.SetPlane(1, 0, 0, other)

	ctx := newCtx(t, f)
	ctx.SetImage(base)
	cmd, err := NewSubtractChannel([]byte(`{"channelIndex": 1}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.Equal(t, 70.0, ctx.Active.Image.At(0, 0, 0))
}
