package object

import (
	"math"
	"sort"
	"sync"

	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/plane"
)

// PipelineID identifies one pipeline within an image, by declaration order.
type PipelineID string

// ClassCompatibility reports whether two classes are allowed to share
// a tracking id, typically sourced from project settings.
type ClassCompatibility func(a, b Class) bool

// Atom owns every pipeline's ObjectList for one image.
// It is mutated only by that image's own workers; cross-image
// concurrency never shares an Atom.
type Atom struct {
	mu         sync.Mutex
	byPipeline map[PipelineID][]*Object
	order      []PipelineID // declaration order, for deterministic drain
	compatible ClassCompatibility
}

// NewAtom builds an empty Atom. compatible may be nil, in which case
// no two classes are ever considered compatible for tracking.
func NewAtom(compatible ClassCompatibility) *Atom {
	if compatible == nil {
		compatible = func(a, b Class) bool { return false }
	}
	return &Atom{byPipeline: map[PipelineID][]*Object{}, compatible: compatible}
}

// Append adds objects produced by one pipeline's executor run. Objects
// within a single Append share one PlaneId;
// Append does not itself enforce that — the executor guarantees it by
// construction, since every object in an ObjectList it hands off came
// from one WorkUnit.
func (a *Atom) Append(pipeline PipelineID, objects []*Object) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byPipeline[pipeline]; !ok {
		a.order = append(a.order, pipeline)
	}
	for _, o := range objects {
		o.PipelineID = pipeline
	}
	a.byPipeline[pipeline] = append(a.byPipeline[pipeline], objects...)
}

// ByPipeline returns a read-only view of one pipeline's objects, for
// intersection/distance commands consuming another pipeline's list.
func (a *Atom) ByPipeline(pipeline PipelineID) []*Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Object(nil), a.byPipeline[pipeline]...)
}

// ByClass returns every object of the given class across all pipelines.
func (a *Atom) ByClass(class Class) []*Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Object
	for _, pipeline := range a.order {
		for _, o := range a.byPipeline[pipeline] {
			if o.Class == class {
				out = append(out, o)
			}
		}
	}
	return out
}

// ByTrackingId returns every object sharing the given tracking id.
func (a *Atom) ByTrackingId(id ID) []*Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Object
	for _, pipeline := range a.order {
		for _, o := range a.byPipeline[pipeline] {
			if o.TrackingId == id {
				out = append(out, o)
			}
		}
	}
	return out
}

// overlapFraction computes |A∩B| / min(|A|,|B|) between two objects'
// masks in full-image coordinates.
func overlapFraction(a, b *Object) float64 {
	ar, br := a.BoundingBox, b.BoundingBox
	x0, y0 := max(ar.X, br.X), max(ar.Y, br.Y)
	x1, y1 := min(ar.X+ar.Width, br.X+br.Width), min(ar.Y+ar.Height, br.Y+br.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	intersection := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if a.Mask.Get(x-ar.X, y-ar.Y) && b.Mask.Get(x-br.X, y-br.Y) {
				intersection++
			}
		}
	}
	if intersection == 0 {
		return 0
	}
	areaA, areaB := a.Mask.PopCount(), b.Mask.PopCount()
	smaller := areaA
	if areaB < smaller {
		smaller = areaB
	}
	if smaller == 0 {
		return 0
	}
	return float64(intersection) / float64(smaller)
}

// AssignTrackingIds implements cross-pipeline tracking-id matching: two objects from
// different pipelines on the given plane acquire the same TrackingId
// iff their masks overlap by >=50%, their classes are declared
// compatible, and the overlap is maximal for each in the pair. Pairwise
// matches are then merged by a union-find sweep.
func (a *Atom) AssignTrackingIds(planeId plane.PlaneId, overlapThreshold float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var onPlane []*Object
	for _, pipeline := range a.order {
		for _, o := range a.byPipeline[pipeline] {
			if o.Plane == planeId {
				onPlane = append(onPlane, o)
			}
		}
	}
	sort.Slice(onPlane, func(i, j int) bool { return onPlane[i].ObjectId < onPlane[j].ObjectId })

	uf := newUnionFind(len(onPlane))
	index := make(map[ID]int, len(onPlane))
	for i, o := range onPlane {
		index[o.ObjectId] = i
	}

	// bestMatch[i] is the index of i's best-overlap partner so far,
	// enforced mutually below ("overlap is maximal for each in the pair").
	type match struct {
		partner int
		overlap float64
	}
	best := make([]match, len(onPlane))
	for i := range best {
		best[i] = match{partner: -1}
	}

	for i := 0; i < len(onPlane); i++ {
		for j := i + 1; j < len(onPlane); j++ {
			oi, oj := onPlane[i], onPlane[j]
			if oi.ObjectId == oj.ObjectId {
				continue
			}
			if oi.PipelineID == oj.PipelineID {
				continue
			}
			if !a.compatible(oi.Class, oj.Class) {
				continue
			}
			overlap := overlapFraction(oi, oj)
			if overlap < overlapThreshold {
				continue
			}
			if overlap > best[i].overlap {
				best[i] = match{partner: j, overlap: overlap}
			}
			if overlap > best[j].overlap {
				best[j] = match{partner: i, overlap: overlap}
			}
		}
	}

	for i, m := range best {
		if m.partner < 0 {
			continue
		}
		// mutual-maximum: only union if each is the other's best match
		if best[m.partner].partner == i {
			uf.union(i, m.partner)
		}
	}

	groups := map[int][]int{}
	for i := range onPlane {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		trackingId := onPlane[members[0]].ObjectId
		for _, idx := range members {
			if onPlane[idx].ObjectId < trackingId {
				trackingId = onPlane[idx].ObjectId
			}
		}
		for _, idx := range members {
			onPlane[idx].TrackingId = trackingId
		}
	}
}

// StitchTiles merges objects of one pipeline's plane that were
// segmented independently per-tile but whose masks are pixel-adjacent
// across a tile boundary, per connectivity — undoing the split a
// region straddling two tiles would otherwise suffer. Merged objects
// keep the lowest ObjectId among their parts; Class and Confidence are
// taken from the first part in the pipeline's object list,
// IntensityByChannel is recombined from the parts, IntersectingByClass
// and DistanceByClass are dropped since they were computed against the
// pre-merge geometry and any later command re-running on this pipeline
// must recompute them.
func (a *Atom) StitchTiles(pipeline PipelineID, planeId plane.PlaneId, connectivity Connectivity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	objs := a.byPipeline[pipeline]
	var onPlane []int
	for i, o := range objs {
		if o.Plane == planeId {
			onPlane = append(onPlane, i)
		}
	}
	if len(onPlane) < 2 {
		return
	}

	uf := newUnionFind(len(onPlane))
	for i := 0; i < len(onPlane); i++ {
		for j := i + 1; j < len(onPlane); j++ {
			oi, oj := objs[onPlane[i]], objs[onPlane[j]]
			if oi.Tile == oj.Tile {
				continue
			}
			if masksAdjacent(oi, oj, connectivity) {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]int{}
	for i := range onPlane {
		root := uf.find(i)
		groups[root] = append(groups[root], onPlane[i])
	}

	var merged []*Object
	keep := make(map[int]bool, len(objs))
	for _, members := range groups {
		if len(members) < 2 {
			keep[members[0]] = true
			continue
		}
		parts := make([]*Object, len(members))
		for i, idx := range members {
			parts[i] = objs[idx]
		}
		merged = append(merged, mergeObjects(parts))
	}

	out := make([]*Object, 0, len(objs))
	for i, o := range objs {
		if keep[i] {
			out = append(out, o)
		}
	}
	out = append(out, merged...)
	a.byPipeline[pipeline] = out
}

// masksAdjacent reports whether a and b's masks, placed at their
// BoundingBoxes in full-image coordinates, share at least one pair of
// neighboring pixels under connectivity. It first rejects pairs whose
// dilated bounding boxes don't even overlap, then checks each set pixel
// of a against b's mask at its neighbors.
func masksAdjacent(a, b *Object, connectivity Connectivity) bool {
	ar, br := a.BoundingBox, b.BoundingBox
	dar := imgbufDilate(ar)
	if !rectsOverlap(dar, br) {
		return false
	}

	deltas := [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	if connectivity == Connectivity8 {
		deltas = append(deltas, [2]int{-1, -1}, [2]int{1, -1}, [2]int{-1, 1}, [2]int{1, 1})
	}

	for y := 0; y < ar.Height; y++ {
		for x := 0; x < ar.Width; x++ {
			if !a.Mask.Get(x, y) {
				continue
			}
			gx, gy := ar.X+x, ar.Y+y
			for _, d := range deltas {
				nx, ny := gx+d[0], gy+d[1]
				lx, ly := nx-br.X, ny-br.Y
				if lx < 0 || ly < 0 || lx >= br.Width || ly >= br.Height {
					continue
				}
				if b.Mask.Get(lx, ly) {
					return true
				}
			}
		}
	}
	return false
}

func rectsOverlap(a, b imgbuf.Rect) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width && a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}

// imgbufDilate grows r by one pixel on every side, the margin within
// which a neighboring tile's object could be adjacent.
func imgbufDilate(r imgbuf.Rect) imgbuf.Rect {
	return imgbuf.Rect{X: r.X - 1, Y: r.Y - 1, Width: r.Width + 2, Height: r.Height + 2}
}

// mergeObjects combines tile-split parts of what was one region into a
// single object: union bounding box and mask, a freshly extracted
// contour, and the lowest ObjectId among the parts. IntensityByChannel
// is recombined exactly for sum/min/max and via pooled mean and
// variance for avg/stddev; Median is approximated as the part-weighted
// average of per-part medians, since the exact population median isn't
// recoverable without the parts' raw pixel values.
func mergeObjects(parts []*Object) *Object {
	x0, y0 := parts[0].BoundingBox.X, parts[0].BoundingBox.Y
	x1, y1 := x0+parts[0].BoundingBox.Width, y0+parts[0].BoundingBox.Height
	for _, p := range parts[1:] {
		b := p.BoundingBox
		x0, y0 = min(x0, b.X), min(y0, b.Y)
		x1, y1 = max(x1, b.X+b.Width), max(y1, b.Y+b.Height)
	}
	box := imgbuf.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}

	mask := imgbuf.NewBinaryMask(box.Width, box.Height, imgbuf.Point{X: box.X, Y: box.Y})
	minId := parts[0].ObjectId
	for _, p := range parts {
		pb := p.BoundingBox
		for y := 0; y < pb.Height; y++ {
			for x := 0; x < pb.Width; x++ {
				if p.Mask.Get(x, y) {
					mask.Set(pb.X+x-box.X, pb.Y+y-box.Y, true)
				}
			}
		}
		if p.ObjectId < minId {
			minId = p.ObjectId
		}
	}

	merged := NewObject(minId, parts[0].Class, parts[0].Plane, plane.TileId{}, box, mask)
	merged.OriginObjectId = minId
	merged.PipelineID = parts[0].PipelineID
	merged.Confidence = parts[0].Confidence
	merged.Contour = ExtractContour(mask)
	merged.IntensityByChannel = mergeIntensityStats(parts)
	return merged
}

// mergeIntensityStats pools per-channel IntensityStats across parts,
// treating each part's PopCount as its sample weight.
func mergeIntensityStats(parts []*Object) map[int]IntensityStats {
	type acc struct {
		n                int
		sum, min, max    float64
		weightedMedian   float64
		weightedVarNumer float64
	}
	accs := map[int]*acc{}
	for _, p := range parts {
		n := p.Mask.PopCount()
		if n == 0 {
			continue
		}
		for ch, stats := range p.IntensityByChannel {
			e, ok := accs[ch]
			if !ok {
				e = &acc{min: stats.Min, max: stats.Max}
				accs[ch] = e
			}
			e.n += n
			e.sum += stats.Sum
			e.weightedMedian += stats.Median * float64(n)
			if stats.Min < e.min {
				e.min = stats.Min
			}
			if stats.Max > e.max {
				e.max = stats.Max
			}
		}
	}
	for _, p := range parts {
		n := p.Mask.PopCount()
		if n == 0 {
			continue
		}
		for ch, stats := range p.IntensityByChannel {
			e := accs[ch]
			mean := e.sum / float64(e.n)
			d := stats.Avg - mean
			e.weightedVarNumer += float64(n-1)*stats.Stddev*stats.Stddev + float64(n)*d*d
		}
	}

	out := make(map[int]IntensityStats, len(accs))
	for ch, e := range accs {
		avg := e.sum / float64(e.n)
		stddev := 0.0
		if e.n > 1 {
			stddev = sqrtNonNeg(e.weightedVarNumer / float64(e.n-1))
		}
		out[ch] = IntensityStats{
			Sum: e.sum, Min: e.min, Max: e.max, Avg: avg,
			Median: e.weightedMedian / float64(e.n), Stddev: stddev,
		}
	}
	return out
}

func sqrtNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Drain returns every object across all pipelines in deterministic
// order: pipeline declaration order, then objectId order within a
// pipeline.
func (a *Atom) Drain() []*Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Object
	for _, pipeline := range a.order {
		objs := append([]*Object(nil), a.byPipeline[pipeline]...)
		sort.Slice(objs, func(i, j int) bool { return objs[i].ObjectId < objs[j].ObjectId })
		out = append(out, objs...)
	}
	return out
}

type unionFind struct{ parent, rank []int }

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
