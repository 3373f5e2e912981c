package cross

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

func box(id object.ID, class object.Class, x, y, w, h int) *object.Object {
	mask := imgbuf.NewBinaryMask(w, h, imgbuf.Point{})
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			mask.Set(xx, yy, true)
		}
	}
	return object.NewObject(id, class, plane.PlaneId{}, plane.TileId{}, imgbuf.Rect{X: x, Y: y, Width: w, Height: h}, mask)
}

func newAtomCtx(t *testing.T, atom *object.Atom, active []*object.Object) *executor.Context {
	t.Helper()
	f := planetest.New(50, 50, imgbuf.Depth8, 1, 1, 1)
	ctx := executor.NewContext(context.Background(), f, atom, logging.Default(), "p1",
		plane.PlaneId{}, plane.TileId{}, 0, object.Class(1))
	ctx.SetObjects(active)
	return ctx
}

func TestIntersectingFindsOverlappingObjectOfTargetClass(t *testing.T) {
	nucleus := box(1, object.Class(1), 0, 0, 10, 10)
	cell := box(2, object.Class(2), 5, 5, 10, 10)
	atom := object.NewAtom(nil)
	atom.Append("p1", []*object.Object{nucleus})
	atom.Append("p2", []*object.Object{cell})

	ctx := newAtomCtx(t, atom, []*object.Object{nucleus})
	cmd, err := NewIntersecting([]byte(`{"targetClass": 2}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	assert.Equal(t, []object.ID{2}, nucleus.IntersectingByClass[object.Class(2)])
}

func TestIntersectingGatesOnThresholdFractionOfA(t *testing.T) {
	// 40x40 object at (30,30) overlaps a 100x100 object at (0,0) over
	// its full 40x40 area: 1600/10000 == 16% of a's area.
	a := box(1, object.Class(1), 0, 0, 100, 100)
	b := box(2, object.Class(2), 30, 30, 40, 40)
	atom := object.NewAtom(nil)
	atom.Append("p1", []*object.Object{a})
	atom.Append("p2", []*object.Object{b})

	ctx := newAtomCtx(t, atom, []*object.Object{a})
	cmd, err := NewIntersecting([]byte(`{"targetClass": 2, "threshold": 0.5}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.Empty(t, a.IntersectingByClass[object.Class(2)])

	a.IntersectingByClass = map[object.Class][]object.ID{}
	ctx = newAtomCtx(t, atom, []*object.Object{a})
	cmd, err = NewIntersecting([]byte(`{"targetClass": 2, "threshold": 0.1}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))
	assert.Equal(t, []object.ID{2}, a.IntersectingByClass[object.Class(2)])
}

func TestDistanceComputesCenterCenter(t *testing.T) {
	a := box(1, object.Class(1), 0, 0, 10, 10)
	b := box(2, object.Class(2), 20, 0, 10, 10)
	atom := object.NewAtom(nil)
	atom.Append("p1", []*object.Object{a})
	atom.Append("p2", []*object.Object{b})

	ctx := newAtomCtx(t, atom, []*object.Object{a})
	cmd, err := NewDistance([]byte(`{"targetClass": 2}`))
	require.NoError(t, err)
	require.NoError(t, cmd.Execute(ctx))

	results := a.DistanceByClass[object.Class(2)]
	require.Len(t, results, 1)
	assert.Equal(t, 20.0, results[0].CenterCenter) // centers at (5,5) and (25,5)
	assert.Equal(t, object.ID(2), results[0].ToId)
}
