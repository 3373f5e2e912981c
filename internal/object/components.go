package object

import (
	"github.com/imagec/engine/internal/imgbuf"
)

// Connectivity selects 4- or 8-neighbor adjacency for connected-component
// labeling. The zero value is Connectivity8, so a pipeline that never
// declares one keeps the engine's historical default.
type Connectivity int

const (
	Connectivity8 Connectivity = iota
	Connectivity4
)

// Component is one connected region found in a BinaryMask, in
// full-image coordinates.
type Component struct {
	BoundingBox imgbuf.Rect
	Mask        *imgbuf.BinaryMask // cropped to BoundingBox
}

// ConnectedComponents labels m and returns one Component per connected
// region, in row-major order of each region's first (top-left-most)
// pixel, for deterministic objectId assignment.
func ConnectedComponents(m *imgbuf.BinaryMask, connectivity Connectivity) []Component {
	labels := make([]int, m.Width*m.Height)
	next := 1
	var order []int // label -> first-seen order

	var neighbors func(x, y int) [][2]int
	if connectivity == Connectivity8 {
		neighbors = func(x, y int) [][2]int {
			return [][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}, {x - 1, y - 1}, {x + 1, y - 1}, {x - 1, y + 1}, {x + 1, y + 1}}
		}
	} else {
		neighbors = func(x, y int) [][2]int {
			return [][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
		}
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			idx := y*m.Width + x
			if !m.Get(x, y) || labels[idx] != 0 {
				continue
			}
			label := next
			next++
			order = append(order, label)

			queue := [][2]int{{x, y}}
			labels[idx] = label
			for len(queue) > 0 {
				cx, cy := queue[0][0], queue[0][1]
				queue = queue[1:]
				for _, n := range neighbors(cx, cy) {
					nx, ny := n[0], n[1]
					if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
						continue
					}
					nidx := ny*m.Width + nx
					if !m.Get(nx, ny) || labels[nidx] != 0 {
						continue
					}
					labels[nidx] = label
					queue = append(queue, [2]int{nx, ny})
				}
			}
		}
	}

	boxes := make(map[int]imgbuf.Rect, len(order))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			label := labels[y*m.Width+x]
			if label == 0 {
				continue
			}
			r, ok := boxes[label]
			if !ok {
				boxes[label] = imgbuf.Rect{X: x, Y: y, Width: 1, Height: 1}
				continue
			}
			x0, y0 := min(r.X, x), min(r.Y, y)
			x1, y1 := max(r.X+r.Width, x+1), max(r.Y+r.Height, y+1)
			boxes[label] = imgbuf.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
		}
	}

	out := make([]Component, 0, len(order))
	for _, label := range order {
		box := boxes[label]
		localMask := imgbuf.NewBinaryMask(box.Width, box.Height, imgbuf.Point{X: m.Origin.X + box.X, Y: m.Origin.Y + box.Y})
		for y := 0; y < box.Height; y++ {
			for x := 0; x < box.Width; x++ {
				if labels[(box.Y+y)*m.Width+(box.X+x)] == label {
					localMask.Set(x, y, true)
				}
			}
		}
		out = append(out, Component{BoundingBox: imgbuf.Rect{X: m.Origin.X + box.X, Y: m.Origin.Y + box.Y, Width: box.Width, Height: box.Height}, Mask: localMask})
	}
	return out
}

// ExtractContour derives the outer-boundary vertex list of m's set
// pixels using Moore boundary tracing, in mask-local coordinates.
// Returns nil for an empty mask.
func ExtractContour(m *imgbuf.BinaryMask) []imgbuf.Point {
	start, found := imgbuf.Point{}, false
outer:
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Get(x, y) {
				start = imgbuf.Point{X: x, Y: y}
				found = true
				break outer
			}
		}
	}
	if !found {
		return nil
	}

	dirs := [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	contour := []imgbuf.Point{start}
	current := start
	backtrack := 6 // direction we arrived from, initialized as if from the west
	for {
		foundNext := false
		for i := 0; i < 8; i++ {
			dir := (backtrack + 1 + i) % 8
			nx, ny := current.X+dirs[dir][0], current.Y+dirs[dir][1]
			if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height || !m.Get(nx, ny) {
				continue
			}
			current = imgbuf.Point{X: nx, Y: ny}
			backtrack = (dir + 4) % 8
			foundNext = true
			break
		}
		if !foundNext || current == start {
			break
		}
		contour = append(contour, current)
		if len(contour) > m.Width*m.Height*4 {
			break // pathological safety valve; should never trigger on a valid mask
		}
	}
	return contour
}
