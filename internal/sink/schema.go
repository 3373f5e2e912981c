package sink

// schema is the Result Sink's DDL. MAP-valued columns
// (Object.intensityByChannel, ImageStats' seven reduction columns) are
// normalized into child tables keyed by the packed measurekey rather
// than kept as opaque blobs, so the encoding stays bit-exact and
// queryable. ImageStats' seven reductions (sum/count/min/max/median/
// avg/stddev) share the image_stat_value table, distinguished by the
// measurekey.Stat field packed into measure_key.
const schema = `
CREATE TABLE IF NOT EXISTS analyze (
	analyze_id   TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	plate        TEXT,
	settings_json BLOB NOT NULL,
	job_info_json BLOB,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER
);

CREATE TABLE IF NOT EXISTS plate (
	plate_id TEXT PRIMARY KEY,
	analyze_id TEXT NOT NULL REFERENCES analyze(analyze_id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_entry (
	group_id TEXT PRIMARY KEY,
	plate_id TEXT NOT NULL REFERENCES plate(plate_id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS image (
	image_id    INTEGER PRIMARY KEY,
	analyze_id  TEXT NOT NULL REFERENCES analyze(analyze_id),
	group_id    TEXT REFERENCES group_entry(group_id),
	path        TEXT NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	committed_at INTEGER
);

CREATE TABLE IF NOT EXISTS image_channel (
	image_id     INTEGER NOT NULL REFERENCES image(image_id),
	channel      INTEGER NOT NULL,
	z_stack      INTEGER NOT NULL DEFAULT 0,
	t_stack      INTEGER NOT NULL DEFAULT 0,
	pixel_size_x_um REAL,
	pixel_size_y_um REAL,
	valid        INTEGER NOT NULL DEFAULT 1,
	error_code   TEXT,
	control_image_path TEXT,
	PRIMARY KEY (image_id, channel, z_stack, t_stack)
);

CREATE TABLE IF NOT EXISTS object (
	object_id        INTEGER NOT NULL,
	image_id         INTEGER NOT NULL REFERENCES image(image_id),
	pipeline_uid     TEXT NOT NULL,
	origin_object_id INTEGER NOT NULL,
	parent_object_id INTEGER NOT NULL,
	tracking_id      INTEGER NOT NULL,
	class_id         INTEGER NOT NULL,
	series_index     INTEGER NOT NULL,
	c_stack          INTEGER NOT NULL,
	z_stack          INTEGER NOT NULL,
	t_stack          INTEGER NOT NULL,
	bbox_x INTEGER NOT NULL, bbox_y INTEGER NOT NULL,
	bbox_w INTEGER NOT NULL, bbox_h INTEGER NOT NULL,
	confidence REAL NOT NULL,
	validity   INTEGER NOT NULL,
	PRIMARY KEY (image_id, object_id)
);

CREATE TABLE IF NOT EXISTS object_measurement (
	image_id    INTEGER NOT NULL,
	object_id   INTEGER NOT NULL,
	measure_key INTEGER NOT NULL,
	value       REAL NOT NULL,
	PRIMARY KEY (image_id, object_id, measure_key),
	FOREIGN KEY (image_id, object_id) REFERENCES object(image_id, object_id)
);

CREATE TABLE IF NOT EXISTS image_stats (
	image_id INTEGER NOT NULL REFERENCES image(image_id),
	channel  INTEGER NOT NULL,
	PRIMARY KEY (image_id, channel)
);

CREATE TABLE IF NOT EXISTS image_stat_value (
	image_id    INTEGER NOT NULL,
	channel     INTEGER NOT NULL,
	measure_key INTEGER NOT NULL,
	value       REAL NOT NULL,
	PRIMARY KEY (image_id, channel, measure_key),
	FOREIGN KEY (image_id, channel) REFERENCES image_stats(image_id, channel)
);
`
