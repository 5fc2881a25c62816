package history

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// schema creates the history tables. Timestamps are Unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS builds (
    job_id TEXT PRIMARY KEY,
    root TEXT NOT NULL,
    state TEXT NOT NULL,
    exit_code INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    tail TEXT NOT NULL DEFAULT '',
    revision TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL DEFAULT 0,
    published INTEGER NOT NULL DEFAULT 0,
    published_at INTEGER NOT NULL DEFAULT 0,
    publish_error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
`
