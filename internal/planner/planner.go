// Package planner implements the Work Planner:
// expanding project settings + image inventory into the totally
// ordered set of WorkUnits, and computing thread fan-out from a memory
// budget.
package planner

import (
	"runtime"

	"github.com/imagec/engine/internal/ids"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/settings"
)

// WorkUnit is the atomic execution grain: one image, one pipeline, one
// output plane, one tile.
type WorkUnit struct {
	ImageId    ids.ImageId
	ImagePath  string
	PipelineID object.PipelineID
	Pipeline   settings.Pipeline
	Plane      plane.PlaneId
	Tile       plane.TileId
	// ObjectIdBase is the first objectId this unit may assign; the
	// planner allocates disjoint, monotonically increasing ranges per
	// (image, pipeline) in tile row-major order so that the final
	// object set is deterministic regardless of worker interleaving.
	ObjectIdBase object.ID
}

// objectIdsPerTile is a generous static upper bound on the number of
// objects any single WorkUnit can emit, used only to size disjoint
// objectId ranges; it is not a functional limit; a pipeline that
// somehow emits more should wrap into the next tile's range, which a
// sufficiently large bound below makes a non-issue in practice.
const objectIdsPerTile = 1 << 20

// Plan expands one image's inventory against settings into its ordered
// WorkUnits. Ordering is tiles row-major, pipelines
// in declared order, plane dimensions in (t, z) order.
func Plan(imageId ids.ImageId, imagePath string, inv plane.ImageInventory, s *settings.AnalyzeSettings) ([]WorkUnit, error) {
	var units []WorkUnit
	var nextBase object.ID

	for _, p := range s.Pipelines {
		if p.Meta.Disabled {
			continue
		}
		pipelineID := object.PipelineID(p.Meta.UID)
		series, err := seriesFor(inv, p)
		if err != nil {
			return nil, err
		}

		zs := expandZ(s.ImageSetup, p, series.ZCount)
		ts := expandT(s.ImageSetup, p, series.TCount)
		tiles := tilesFor(series)

		for _, t := range ts {
			for _, z := range zs {
				for _, tile := range tiles {
					units = append(units, WorkUnit{
						ImageId:    imageId,
						ImagePath:  imagePath,
						PipelineID: pipelineID,
						Pipeline:   p,
						Plane: plane.PlaneId{
							SeriesIndex: series.SeriesIndex,
							CStack:      p.PipelineSetup.CStackIndex,
							ZStack:      z,
							TStack:      t,
						},
						Tile:         tile,
						ObjectIdBase: nextBase,
					})
					nextBase += objectIdsPerTile
				}
			}
		}
	}
	return units, nil
}

func seriesFor(inv plane.ImageInventory, p settings.Pipeline) (plane.SeriesInfo, error) {
	// A pipeline declares no series explicitly; the
	// engine processes series 0 by default, matching single-series
	// acquisitions, the common case in practice.
	if len(inv.Series) == 0 {
		return plane.SeriesInfo{}, &noSeriesError{path: inv.Path}
	}
	return inv.Series[0], nil
}

type noSeriesError struct{ path string }

func (e *noSeriesError) Error() string { return "planner: image has no series: " + e.path }

// expandZ expands a plane's z-stack handling into its ordered z-ranges.
func expandZ(setup settings.ImageSetup, p settings.Pipeline, zCount int) []int {
	handling := p.PipelineSetup.ZStackHandling
	if handling == "" {
		handling = setup.ZStackHandling
	}
	if p.PipelineSetup.ZProjection != plane.ProjectionNone || handling == settings.ExactOne {
		return []int{p.PipelineSetup.ZStackIndex}
	}
	out := make([]int, 0, zCount)
	for z := 0; z < zCount; z++ {
		out = append(out, z)
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

// expandT expands a plane's t-stack handling into its ordered t-indices.
func expandT(setup settings.ImageSetup, p settings.Pipeline, tCount int) []int {
	handling := p.PipelineSetup.TStackHandling
	if handling == "" {
		handling = setup.TStackHandling
	}
	if handling == settings.ExactOne {
		return []int{p.PipelineSetup.TStackIndex}
	}
	start := setup.TStackSettings.StartFrame
	end := setup.TStackSettings.EndFrame
	if end == 0 && start == 0 {
		end = tCount - 1
	}
	if end > tCount-1 {
		end = tCount - 1
	}
	if end < start {
		end = start
	}
	out := make([]int, 0, end-start+1)
	for t := start; t <= end; t++ {
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

// tilesFor emits a series' tile grid in row-major order.
func tilesFor(series plane.SeriesInfo) []plane.TileId {
	grid := series.TileGrid
	width, height := grid.TileWidth, grid.TileHeight
	if width <= 0 {
		width = series.Width
	}
	if height <= 0 {
		height = series.Height
	}

	countX := (series.Width + width - 1) / width
	countY := (series.Height + height - 1) / height
	if countX == 0 {
		countX = 1
	}
	if countY == 0 {
		countY = 1
	}

	tiles := make([]plane.TileId, 0, countX*countY)
	for ty := 0; ty < countY; ty++ {
		for tx := 0; tx < countX; tx++ {
			w, h := width, height
			if (tx+1)*width > series.Width {
				w = series.Width - tx*width
			}
			if (ty+1)*height > series.Height {
				h = series.Height - ty*height
			}
			tiles = append(tiles, plane.TileId{TileX: tx, TileY: ty, TileWidth: w, TileHeight: h})
		}
	}
	return tiles
}

// ThreadBudget is the inputs to the thread fan-out formula.
type ThreadBudget struct {
	FreeRAMBytes         int64
	TileWidth, TileHeight int
	MaxDepthBytes        int64 // bytes per sample at the widest depth in play (4 for 32-bit float)
	PipelineDepthFactor  int   // max simultaneously live ImageBuffers in the chain
	CPUCores             int   // 0 == use runtime.NumCPU()
}

// Threads computes clamp(freeRAM / estPerThreadBytes, 1, cpuCores).
func Threads(b ThreadBudget) int {
	cores := b.CPUCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	depthFactor := b.PipelineDepthFactor
	if depthFactor <= 0 {
		depthFactor = 1
	}
	estPerThread := int64(b.TileWidth) * int64(b.TileHeight) * b.MaxDepthBytes * int64(depthFactor)
	if estPerThread <= 0 {
		return clamp(1, 1, cores)
	}
	threads := int(b.FreeRAMBytes / estPerThread)
	return clamp(threads, 1, cores)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
