package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/ids"
	"github.com/imagec/engine/internal/imgbuf"
	"github.com/imagec/engine/internal/measurekey"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.icdb")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBeginAnalyzeAndInsertImageRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	analyzeId := ids.NewAnalyzeId()
	runId := ids.NewRunId()
	require.NoError(t, store.BeginAnalyze(ctx, analyzeId, runId, "plate-1", []byte(`{}`), nil, 1000))

	imageId := ids.NewImageId(runId, "/data/plate-1/well-a1.ome.tiff")
	require.NoError(t, store.InsertImage(ctx, analyzeId, imageId, "", "/data/plate-1/well-a1.ome.tiff", 512, 512))

	require.NoError(t, store.FinishAnalyze(ctx, analyzeId, 2000))
}

func TestAppendObjectPersistsMeasurementsUnderPackedKeys(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runId := ids.NewRunId()
	analyzeId := ids.NewAnalyzeId()
	require.NoError(t, store.BeginAnalyze(ctx, analyzeId, runId, "", []byte(`{}`), nil, 0))

	imageId := ids.NewImageId(runId, "/a.tiff")
	require.NoError(t, store.InsertImage(ctx, analyzeId, imageId, "", "/a.tiff", 100, 100))

	batch, err := store.OpenImageBatch(ctx, imageId)
	require.NoError(t, err)

	o := object.NewObject(1000, 1, plane.PlaneId{CStack: 0, ZStack: 0, TStack: 0}, plane.TileId{}, imgbuf.Rect{X: 10, Y: 10, Width: 5, Height: 5}, nil)
	o.IntensityByChannel[0] = object.IntensityStats{Sum: 100, Min: 10, Max: 40, Avg: 25, Median: 20, Stddev: 12.9099}

	require.NoError(t, batch.AppendObject("pipeline-a", o))
	require.NoError(t, batch.Commit(1234))

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM object_measurement WHERE image_id = ? AND object_id = ?`, uint64(imageId), uint64(o.ObjectId)))
	assert.Equal(t, 6, count)

	var objectCount int
	require.NoError(t, store.db.Get(&objectCount, `SELECT COUNT(*) FROM object WHERE image_id = ? AND object_id = ?`, uint64(imageId), uint64(o.ObjectId)))
	assert.Equal(t, 1, objectCount)
}

func TestImageBatchRollbackDiscardsPendingRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runId := ids.NewRunId()
	analyzeId := ids.NewAnalyzeId()
	require.NoError(t, store.BeginAnalyze(ctx, analyzeId, runId, "", []byte(`{}`), nil, 0))
	imageId := ids.NewImageId(runId, "/b.tiff")
	require.NoError(t, store.InsertImage(ctx, analyzeId, imageId, "", "/b.tiff", 10, 10))

	batch, err := store.OpenImageBatch(ctx, imageId)
	require.NoError(t, err)

	o := object.NewObject(1, 1, plane.PlaneId{}, plane.TileId{}, imgbuf.Rect{}, nil)
	require.NoError(t, batch.AppendObject("pipeline-a", o))
	require.NoError(t, batch.Rollback())

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM object WHERE image_id = ?`, uint64(imageId)))
	assert.Equal(t, 0, count)
}

func TestAppendImageStatsPersistsChannelValues(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runId := ids.NewRunId()
	analyzeId := ids.NewAnalyzeId()
	require.NoError(t, store.BeginAnalyze(ctx, analyzeId, runId, "", []byte(`{}`), nil, 0))
	imageId := ids.NewImageId(runId, "/c.tiff")
	require.NoError(t, store.InsertImage(ctx, analyzeId, imageId, "", "/c.tiff", 10, 10))

	sumKey, err := measurekey.Encode(measurekey.Key{MeasureChannel: 0, Stat: measurekey.StatSum, CrossChannelStacksC: -1, IntersectingChannel: -1})
	require.NoError(t, err)
	countKey, err := measurekey.Encode(measurekey.Key{MeasureChannel: 0, Stat: measurekey.StatCount, CrossChannelStacksC: -1, IntersectingChannel: -1})
	require.NoError(t, err)

	batch, err := store.OpenImageBatch(ctx, imageId)
	require.NoError(t, err)
	require.NoError(t, batch.AppendImageStats(0, map[uint32]float64{sumKey: 42.0, countKey: 3.0}))
	require.NoError(t, batch.Commit(1234))

	var sum, count float64
	require.NoError(t, store.db.Get(&sum, `SELECT value FROM image_stat_value WHERE image_id = ? AND channel = 0 AND measure_key = ?`, uint64(imageId), sumKey))
	assert.Equal(t, 42.0, sum)
	require.NoError(t, store.db.Get(&count, `SELECT value FROM image_stat_value WHERE image_id = ? AND channel = 0 AND measure_key = ?`, uint64(imageId), countKey))
	assert.Equal(t, 3.0, count)
}
