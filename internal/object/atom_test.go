package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/plane"
)

func squareMask(w, h, x0, y0, x1, y1 int) (*imgbuf.BinaryMask, imgbuf.Rect) {
	bbox := imgbuf.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	mask := imgbuf.NewBinaryMask(bbox.Width, bbox.Height, imgbuf.Point{X: x0, Y: y0})
	for y := 0; y < bbox.Height; y++ {
		for x := 0; x < bbox.Width; x++ {
			mask.Set(x, y, true)
		}
	}
	_ = w
	_ = h
	return mask, bbox
}

// B (40x40) sticks out of A's corner: |A∩B| = 20x20 = 400 over the
// smaller area 1600 gives a 25% tracking overlap.
func TestAssignTrackingIdsRespectsThreshold(t *testing.T) {
	maskA, bboxA := squareMask(100, 100, 0, 0, 100, 100)
	maskB, bboxB := squareMask(100, 100, 80, 80, 120, 120)

	objA := NewObject(1, Class(1), plane.PlaneId{}, plane.TileId{}, bboxA, maskA)
	objB := NewObject(2, Class(2), plane.PlaneId{}, plane.TileId{}, bboxB, maskB)

	atom := NewAtom(func(a, b Class) bool { return true })
	atom.Append("pipelineA", []*Object{objA})
	atom.Append("pipelineB", []*Object{objB})

	atom.AssignTrackingIds(plane.PlaneId{}, 0.5)
	assert.Equal(t, ID(0), objA.TrackingId, "25%% overlap must not meet a 50%% threshold")

	atom.AssignTrackingIds(plane.PlaneId{}, 0.1)
	assert.Equal(t, objA.ObjectId, objA.TrackingId)
	assert.Equal(t, objA.ObjectId, objB.TrackingId, "both objects must share the lower objectId as tracking id")
}

func TestAssignTrackingIdsRequiresClassCompatibility(t *testing.T) {
	maskA, bboxA := squareMask(10, 10, 0, 0, 10, 10)
	maskB, bboxB := squareMask(10, 10, 0, 0, 10, 10)
	objA := NewObject(1, Class(1), plane.PlaneId{}, plane.TileId{}, bboxA, maskA)
	objB := NewObject(2, Class(2), plane.PlaneId{}, plane.TileId{}, bboxB, maskB)

	atom := NewAtom(nil) // no compatibility declared
	atom.Append("a", []*Object{objA})
	atom.Append("b", []*Object{objB})
	atom.AssignTrackingIds(plane.PlaneId{}, 0.1)

	assert.Equal(t, ID(0), objA.TrackingId)
	assert.Equal(t, ID(0), objB.TrackingId)
}

// a region straddling a tile boundary, segmented independently per
// tile, must recombine into exactly one object once stitched.
func TestStitchTilesMergesRegionAcrossTileBoundary(t *testing.T) {
	// left tile covers x in [480,512), right tile covers x in [512,544);
	// the region spans x in [500,530) x y in [500,520), split at x=512.
	leftMask, leftBox := squareMask(0, 0, 500, 500, 512, 520)
	rightMask, rightBox := squareMask(0, 0, 512, 500, 530, 520)

	left := NewObject(10, Class(1), plane.PlaneId{}, plane.TileId{TileX: 0, TileY: 0, TileWidth: 512, TileHeight: 512}, leftBox, leftMask)
	right := NewObject(11, Class(1), plane.PlaneId{}, plane.TileId{TileX: 1, TileY: 0, TileWidth: 512, TileHeight: 512}, rightBox, rightMask)

	atom := NewAtom(nil)
	atom.Append("p1", []*Object{left, right})

	atom.StitchTiles("p1", plane.PlaneId{}, Connectivity8)

	objs := atom.ByPipeline("p1")
	require.Len(t, objs, 1)
	merged := objs[0]
	assert.Equal(t, ID(10), merged.ObjectId, "merged object keeps the lowest part id")
	assert.Equal(t, imgbuf.Rect{X: 500, Y: 500, Width: 30, Height: 20}, merged.BoundingBox)
	assert.Equal(t, 30*20, merged.Mask.PopCount())
}

// objects from different tiles that never touch must stay separate.
func TestStitchTilesLeavesNonAdjacentObjectsSeparate(t *testing.T) {
	aMask, aBox := squareMask(0, 0, 0, 0, 10, 10)
	bMask, bBox := squareMask(0, 0, 512, 512, 522, 522)

	a := NewObject(1, Class(1), plane.PlaneId{}, plane.TileId{TileX: 0, TileY: 0}, aBox, aMask)
	b := NewObject(2, Class(1), plane.PlaneId{}, plane.TileId{TileX: 1, TileY: 1}, bBox, bMask)

	atom := NewAtom(nil)
	atom.Append("p1", []*Object{a, b})

	atom.StitchTiles("p1", plane.PlaneId{}, Connectivity8)

	objs := atom.ByPipeline("p1")
	require.Len(t, objs, 2)
}

func TestDrainIsDeterministicPipelineThenObjectIdOrder(t *testing.T) {
	mask, bbox := squareMask(2, 2, 0, 0, 2, 2)
	o3 := NewObject(3, Class(0), plane.PlaneId{}, plane.TileId{}, bbox, mask)
	o1 := NewObject(1, Class(0), plane.PlaneId{}, plane.TileId{}, bbox, mask)
	o2 := NewObject(2, Class(0), plane.PlaneId{}, plane.TileId{}, bbox, mask)

	atom := NewAtom(nil)
	atom.Append("first", []*Object{o3, o1})
	atom.Append("second", []*Object{o2})

	drained := atom.Drain()
	ids := make([]ID, len(drained))
	for i, o := range drained {
		ids[i] = o.ObjectId
	}
	assert.Equal(t, []ID{1, 3, 2}, ids)
}
