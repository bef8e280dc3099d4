package catalog

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	url               TEXT NOT NULL,
	resolved_url      TEXT,
	save_path         TEXT NOT NULL,
	filename          TEXT,
	total_size        INTEGER NOT NULL DEFAULT -1,
	downloaded        INTEGER NOT NULL DEFAULT 0,
	segments          INTEGER NOT NULL DEFAULT 1,
	range_supported   INTEGER NOT NULL DEFAULT 0,
	etag              TEXT,
	segmented         INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	expected_checksum TEXT,
	checksum_algo     TEXT,
	computed_checksum TEXT,
	last_error        TEXT,
	retry_attempts    INTEGER NOT NULL DEFAULT 0,
	max_retries       INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL,
	completed_at      INTEGER,
	priority          INTEGER NOT NULL DEFAULT 0,
	category          TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category);
`
