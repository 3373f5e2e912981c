package job

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/commands"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/measurekey"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/plane/planetest"
	"github.com/imagec/engine/internal/settings"
	"github.com/imagec/engine/internal/sink"
)

func testSettings(t *testing.T) *settings.AnalyzeSettings {
	t.Helper()
	raw := []byte(`{
		"pipelines": [{
			"meta": {"uid": "pipe-1", "name": "threshold"},
			"pipelineSetup": {"cStackIndex": 0, "defaultClassId": 1},
			"pipelineSteps": [
				{"command": "threshold", "params": {"mode": "MANUAL", "manualCut": 128}},
				{"command": "object_filter", "params": {"minSize": 1}},
				{"command": "measure_intensity", "params": {"channelIndex": 0}}
			]
		}]
	}`)
	s, err := settings.Parse(raw)
	require.NoError(t, err)
	return s
}

func newTestController(t *testing.T, source plane.Source) (*Controller, *sink.Store) {
	t.Helper()
	store, err := sink.Open(filepath.Join(t.TempDir(), "results.icdb"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctrl := New(Config{
		OpenSource: func(ctx context.Context, path string) (plane.Source, error) { return source, nil },
		Store:      store,
		Registry:   commands.NewRegistry(),
		Log:        logging.Default(),
		Threads:    2,
	})
	return ctrl, store
}

func squareFixture() *planetest.Fake {
	f := planetest.New(200, 200, imgbuf.Depth8, 1, 1, 1)
	buf := f.Fill(0, 0, 0, 10)
	for y := 50; y < 151; y++ {
		for x := 50; x < 151; x++ {
			buf.Set(x, y, 0, 200)
		}
	}
	return f
}

func TestControllerRunsToFinishedAndCommitsObjects(t *testing.T) {
	fake := squareFixture()
	ctrl, store := newTestController(t, fake)

	images := []ImageInput{{Path: "/plate/a1.tiff", Inventory: plane.ImageInventory{Path: "/plate/a1.tiff", Series: []plane.SeriesInfo{fake.Series}}}}

	require.NoError(t, ctrl.Start(context.Background(), images, testSettings(t)))
	ctrl.Wait()

	assert.Equal(t, StateFinished, ctrl.State())
	assert.Empty(t, ctrl.Errors())

	progress := ctrl.Progress()
	assert.Equal(t, 1, progress.TotalImages)
	assert.Equal(t, 1, progress.FinishedImages)
	assert.Equal(t, progress.TotalUnits, progress.FinishedUnits)

	var objectCount int
	require.NoError(t, store.DB().Get(&objectCount, `SELECT COUNT(*) FROM object`))
	assert.Equal(t, 1, objectCount)

	var measurementCount int
	require.NoError(t, store.DB().Get(&measurementCount, `SELECT COUNT(*) FROM object_measurement`))
	assert.Greater(t, measurementCount, 0)
}

func TestControllerCommitsSevenWayImageStats(t *testing.T) {
	fake := squareFixture()
	ctrl, store := newTestController(t, fake)

	images := []ImageInput{{Path: "/plate/a1.tiff", Inventory: plane.ImageInventory{Path: "/plate/a1.tiff", Series: []plane.SeriesInfo{fake.Series}}}}

	require.NoError(t, ctrl.Start(context.Background(), images, testSettings(t)))
	ctrl.Wait()
	require.Equal(t, StateFinished, ctrl.State())

	var statCount int
	require.NoError(t, store.DB().Get(&statCount, `SELECT COUNT(*) FROM image_stat_value`))
	assert.Equal(t, 7, statCount) // sum, count, min, max, median, avg, stddev

	countKey, err := measurekey.Encode(measurekey.Key{MeasureChannel: 0, Stat: measurekey.StatCount, CrossChannelStacksC: -1, IntersectingChannel: -1})
	require.NoError(t, err)
	var cnt float64
	require.NoError(t, store.DB().Get(&cnt, `SELECT value FROM image_stat_value WHERE measure_key = ?`, countKey))
	assert.Equal(t, 1.0, cnt) // one valid object produced the square fixture
}

func TestControllerStitchesObjectSplitAcrossTileBoundary(t *testing.T) {
	fake := planetest.New(1024, 1024, imgbuf.Depth8, 1, 1, 1)
	fake.Series.TileGrid = plane.TileGrid{SeriesIndex: 0, TileWidth: 512, TileHeight: 512, CountX: 2, CountY: 2}
	buf := fake.Fill(0, 0, 0, 10)
	for y := 500; y < 700; y++ {
		for x := 500; x < 700; x++ {
			buf.Set(x, y, 0, 200)
		}
	}

	ctrl, store := newTestController(t, fake)
	images := []ImageInput{{Path: "/plate/a1.tiff", Inventory: plane.ImageInventory{Path: "/plate/a1.tiff", Series: []plane.SeriesInfo{fake.Series}}}}

	require.NoError(t, ctrl.Start(context.Background(), images, testSettings(t)))
	ctrl.Wait()
	require.Equal(t, StateFinished, ctrl.State())
	require.Empty(t, ctrl.Errors())

	var objectCount int
	require.NoError(t, store.DB().Get(&objectCount, `SELECT COUNT(*) FROM object`))
	assert.Equal(t, 1, objectCount, "a region straddling four tiles must stitch back into one object")
}

func TestControllerStopCausesStoppedState(t *testing.T) {
	fake := squareFixture()
	ctrl, _ := newTestController(t, fake)

	images := []ImageInput{{Path: "/plate/a1.tiff", Inventory: plane.ImageInventory{Path: "/plate/a1.tiff", Series: []plane.SeriesInfo{fake.Series}}}}

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, ctrl.Start(runCtx, images, testSettings(t)))
	ctrl.Wait()

	assert.Equal(t, StateStopped, ctrl.State())
}

func TestControllerFailsOnEmptyPipelines(t *testing.T) {
	fake := squareFixture()
	ctrl, _ := newTestController(t, fake)

	err := ctrl.Start(context.Background(), nil, &settings.AnalyzeSettings{})
	require.Error(t, err)
	assert.Equal(t, StateFailed, ctrl.State())
}

func TestProgressRoundTripsThroughJSON(t *testing.T) {
	// exercises the JSON encoding path without a live Redis server
	p := Progress{FinishedUnits: 2, TotalUnits: 4, FinishedImages: 1, TotalImages: 2}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	var round Progress
	require.NoError(t, json.Unmarshal(data, &round))
	assert.Equal(t, p, round)
}

func TestNewDefaultsClassCompatibleToSameClassOnly(t *testing.T) {
	ctrl := New(Config{})
	assert.True(t, ctrl.cfg.ClassCompatible(1, 1))
	assert.False(t, ctrl.cfg.ClassCompatible(1, 2))
}
