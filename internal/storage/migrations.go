package storage

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	test_name   TEXT NOT NULL DEFAULT '',
	firmware    TEXT NOT NULL DEFAULT '',
	transport   TEXT NOT NULL DEFAULT '',
	verdict     TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS run_checks (
	run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	description TEXT    NOT NULL,
	pass        INTEGER NOT NULL DEFAULT 0,
	info        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, seq)
);
`

// migrations holds incremental schema changes after the initial schema.
var migrations = []struct {
	version int
	sql     string
}{}
