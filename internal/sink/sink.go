// Package sink implements the Result Sink:
// a transactional, per-image columnar writer over an embedded SQLite
// database, one file per run (`results.icdb`).
package sink

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/ids"
	"github.com/imagec/engine/internal/measurekey"
	"github.com/imagec/engine/internal/object"
)

// Store owns the on-disk database for one run.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the SQLite file at path in WAL mode.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.CodeResultWriteFailed, "sink: open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.CodeResultWriteFailed, "sink: apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for callers (tests, ad hoc
// reporting queries) that need direct read access.
func (s *Store) DB() *sqlx.DB { return s.db }

// BeginAnalyze inserts the run's Analyze row. settingsJson/jobInfoJson
// are the opaque settings/job-info blobs the run was started with.
func (s *Store) BeginAnalyze(ctx context.Context, analyzeId ids.AnalyzeId, runId ids.RunId, plate string, settingsJson, jobInfoJson []byte, startedAtUnix int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyze (analyze_id, run_id, plate, settings_json, job_info_json, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(analyzeId), string(runId), plate, settingsJson, jobInfoJson, startedAtUnix)
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert analyze row", err)
	}
	return nil
}

// FinishAnalyze records the run's completion timestamp.
func (s *Store) FinishAnalyze(ctx context.Context, analyzeId ids.AnalyzeId, finishedAtUnix int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE analyze SET finished_at = ? WHERE analyze_id = ?`, finishedAtUnix, string(analyzeId))
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: finish analyze row", err)
	}
	return nil
}

// InsertImage records one image's row ahead of opening its batch.
func (s *Store) InsertImage(ctx context.Context, analyzeId ids.AnalyzeId, imageId ids.ImageId, groupId, path string, width, height int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO image (image_id, analyze_id, group_id, path, width, height) VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`,
		uint64(imageId), string(analyzeId), groupId, path, width, height)
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert image row", err)
	}
	return nil
}

// InsertImageChannel records one (channel, zStack, tStack) coordinate
// the first time a pipeline touches it, defaulting to valid.
func (s *Store) InsertImageChannel(ctx context.Context, imageId ids.ImageId, channel, zStack, tStack int, pixelSizeXUm, pixelSizeYUm float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO image_channel (image_id, channel, z_stack, t_stack, pixel_size_x_um, pixel_size_y_um) VALUES (?, ?, ?, ?, ?, ?)`,
		uint64(imageId), channel, zStack, tStack, pixelSizeXUm, pixelSizeYUm)
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert image_channel row", err)
	}
	return nil
}

// MarkChannelInvalid flags one (channel, zStack, tStack) INVALID,
// recording the error code that caused it.
func (s *Store) MarkChannelInvalid(ctx context.Context, imageId ids.ImageId, channel, zStack, tStack int, code errs.ErrorCode) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE image_channel SET valid = 0, error_code = ? WHERE image_id = ? AND channel = ? AND z_stack = ? AND t_stack = ?`,
		string(code), uint64(imageId), channel, zStack, tStack)
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: mark image_channel invalid", err)
	}
	return nil
}

// ImageBatch is the transactional unit of work for one image: every
// pipeline's objects for that image are appended, then committed
// atomically.
type ImageBatch struct {
	tx      *sqlx.Tx
	imageId ids.ImageId
}

// OpenImageBatch begins the transaction a single image's commit runs
// inside.
func (s *Store) OpenImageBatch(ctx context.Context, imageId ids.ImageId) (*ImageBatch, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeResultWriteFailed, "sink: begin image batch", err)
	}
	return &ImageBatch{tx: tx, imageId: imageId}, nil
}

// AppendObject writes one object row plus its packed measurement
// values.
func (b *ImageBatch) AppendObject(pipelineUid object.PipelineID, o *object.Object) error {
	_, err := b.tx.Exec(
		`INSERT INTO object (object_id, image_id, pipeline_uid, origin_object_id, parent_object_id, tracking_id,
			class_id, series_index, c_stack, z_stack, t_stack, bbox_x, bbox_y, bbox_w, bbox_h, confidence, validity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uint64(o.ObjectId), uint64(b.imageId), string(pipelineUid), uint64(o.OriginObjectId), uint64(o.ParentObjectId), uint64(o.TrackingId),
		uint32(o.Class), o.Plane.SeriesIndex, o.Plane.CStack, o.Plane.ZStack, o.Plane.TStack,
		o.BoundingBox.X, o.BoundingBox.Y, o.BoundingBox.Width, o.BoundingBox.Height, o.Confidence, uint8(o.Validity))
	if err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert object row", err).WithDetail("objectId", o.ObjectId)
	}

	for key, value := range o.Measurements() {
		if _, err := b.tx.Exec(
			`INSERT INTO object_measurement (image_id, object_id, measure_key, value) VALUES (?, ?, ?, ?)`,
			uint64(b.imageId), uint64(o.ObjectId), key, value); err != nil {
			return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert object measurement", err).WithDetail("objectId", o.ObjectId)
		}
	}
	return nil
}

// AppendImageStats writes one channel's packed per-image statistics row.
// Callers pack the seven sum/count/min/max/median/avg/stddev reductions
// as distinct measurekey.Stat-tagged keys sharing the same channel
// (see measurekey.StatCount and friends).
func (b *ImageBatch) AppendImageStats(channel int, values map[uint32]float64) error {
	if _, err := b.tx.Exec(`INSERT OR IGNORE INTO image_stats (image_id, channel) VALUES (?, ?)`, uint64(b.imageId), channel); err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert image_stats row", err)
	}
	for key, value := range values {
		if _, err := b.tx.Exec(
			`INSERT INTO image_stat_value (image_id, channel, measure_key, value) VALUES (?, ?, ?, ?)`,
			uint64(b.imageId), channel, key, value); err != nil {
			return errs.Wrap(errs.CodeResultWriteFailed, "sink: insert image stat value", err)
		}
	}
	return nil
}

// Commit finalizes the batch, stamping the image row's committed_at so
// a crash between commits leaves an unambiguous boundary: an image's
// results are either fully present or fully absent.
func (b *ImageBatch) Commit(committedAtUnix int64) error {
	if _, err := b.tx.Exec(`UPDATE image SET committed_at = ? WHERE image_id = ?`, committedAtUnix, uint64(b.imageId)); err != nil {
		b.tx.Rollback()
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: stamp image commit time", err)
	}
	if err := b.tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeResultWriteFailed, "sink: commit image batch", err)
	}
	return nil
}

// Rollback discards the batch, used when a per-image error aborts
// that image without affecting others already committed.
func (b *ImageBatch) Rollback() error {
	return b.tx.Rollback()
}

// DecodeMeasurementKey is a thin re-export so callers of this package
// don't need a second import just to interpret a stored key.
func DecodeMeasurementKey(key uint32) measurekey.Key { return measurekey.Decode(key) }
