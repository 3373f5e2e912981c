package classify

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

func newCtx(t *testing.T, objs []*object.Object) *executor.Context {
	t.Helper()
	f := planetest.New(10, 10, imgbuf.Depth8, 1, 1, 1)
	ctx := executor.NewContext(context.Background(), f, object.NewAtom(nil), logging.Default(), "p1",
		plane.PlaneId{}, plane.TileId{}, 0, object.Class(1))
	ctx.SetObjects(objs)
	return ctx
}

func square(id object.ID, size int) *object.Object {
	mask := imgbuf.NewBinaryMask(size, size, imgbuf.Point{})
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			mask.Set(x, y, true)
		}
	}
	return object.NewObject(id, object.Class(0), plane.PlaneId{}, plane.TileId{}, imgbuf.Rect{Width: size, Height: size}, mask)
}

func TestClassifyByRuleAssignsFixedClass(t *testing.T) {
	objs := []*object.Object{square(1, 4)}
	ctx := newCtx(t, objs)

	cmd, err := NewClassifyByRule([]byte(`{"classId": 7}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.Equal(t, object.Class(7), objs[0].Class)
}

func TestObjectFilterFlagsUndersizedObject(t *testing.T) {
	objs := []*object.Object{square(1, 2)}
	ctx := newCtx(t, objs)

	cmd, err := NewObjectFilter([]byte(`{"minSize": 100}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.False(t, objs[0].Validity.IsValid())
}

func TestObjectFilterPassesSquareWithinRange(t *testing.T) {
	objs := []*object.Object{square(1, 10)}
	ctx := newCtx(t, objs)

	cmd, err := NewObjectFilter([]byte(`{"minSize": 1}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.True(t, objs[0].Validity.IsValid())
}

func TestObjectFilterTagsEdgeObjectWithoutInvalidatingByDefault(t *testing.T) {
	objs := []*object.Object{square(1, 10)} // fills the whole 10x10 frame
	ctx := newCtx(t, objs)

	cmd, err := NewObjectFilter([]byte(`{"minSize": 1}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.NotZero(t, objs[0].Validity&object.ValidityAtEdge)
	assert.True(t, objs[0].Validity.IsValid())
}

func TestObjectFilterExcludesAtEdgesWhenConfigured(t *testing.T) {
	objs := []*object.Object{square(1, 10)} // fills the whole 10x10 frame
	ctx := newCtx(t, objs)

	cmd, err := NewObjectFilter([]byte(`{"minSize": 1, "excludeAtEdges": true}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.NotZero(t, objs[0].Validity&object.ValidityAtEdge)
	assert.NotZero(t, objs[0].Validity&object.ValidityFilteredByRule)
	assert.False(t, objs[0].Validity.IsValid())
}

func TestObjectFilterFlagsEmptyMaskAsNoCenterOfMass(t *testing.T) {
	mask := imgbuf.NewBinaryMask(2, 2, imgbuf.Point{X: 4, Y: 4})
	empty := object.NewObject(1, object.Class(0), plane.PlaneId{}, plane.TileId{}, imgbuf.Rect{X: 4, Y: 4, Width: 2, Height: 2}, mask)
	ctx := newCtx(t, []*object.Object{empty})

	cmd, err := NewObjectFilter([]byte(`{"minSize": 0}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.NotZero(t, empty.Validity&object.ValidityNoCenterOfMass)
	assert.False(t, empty.Validity.IsValid())
}
