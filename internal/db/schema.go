package db

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the version recorded in schema_version for SchemaSQL.
const SchemaVersion = 1

// SchemaSQL is the complete schema of the run history ledger.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests load it
// through GetSchemaSQL() instead of declaring their own tables, so a
// repository that references a missing column fails immediately.
//
// Only finished runs and their per-file outcomes are stored. The work queue
// and the settings are never persisted.
const SchemaSQL = `
-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Batch runs
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	total INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	succeeded INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0 CHECK (cancelled IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Per-file outcomes of a run, in processing order
CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	source TEXT NOT NULL,
	output_path TEXT,
	status TEXT NOT NULL CHECK (status IN ('success', 'skipped', 'failed', 'cancelled')),
	detail TEXT,
	PRIMARY KEY (run_id, seq),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

// InitSchema creates the schema on conn if it does not exist yet.
func InitSchema(conn *sql.DB) error {
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return err
	}
	_, err := conn.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema for tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
