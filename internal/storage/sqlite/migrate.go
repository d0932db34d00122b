package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// baseSchema is applied idempotently at open via "CREATE TABLE IF NOT EXISTS".
const baseSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	origin_scope_id TEXT NOT NULL,
	origin_channel_id TEXT NOT NULL,
	status TEXT NOT NULL,
	model TEXT NOT NULL,
	sampler TEXT NOT NULL,
	scheduler TEXT NOT NULL,
	steps INTEGER NOT NULL,
	cfg REAL NOT NULL,
	seed INTEGER NOT NULL,
	size TEXT NOT NULL,
	positive_prompt TEXT NOT NULL,
	negative_prompt TEXT NOT NULL,
	adapters TEXT NOT NULL DEFAULT '[]',
	backend_prompt_id TEXT,
	output_images TEXT,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_requester_id ON jobs(requester_id);

CREATE TABLE IF NOT EXISTS upscale_jobs (
	id TEXT PRIMARY KEY,
	source_job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	source_image_filename TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	origin_scope_id TEXT NOT NULL,
	origin_channel_id TEXT NOT NULL,
	status TEXT NOT NULL,
	upscale_model TEXT NOT NULL,
	workflow TEXT NOT NULL,
	backend_prompt_id TEXT,
	output_image TEXT,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_upscale_jobs_status ON upscale_jobs(status);
CREATE INDEX IF NOT EXISTS idx_upscale_jobs_source_job_id ON upscale_jobs(source_job_id);

CREATE TABLE IF NOT EXISTS banned_words (
	id TEXT PRIMARY KEY,
	word TEXT NOT NULL UNIQUE COLLATE NOCASE,
	partial INTEGER NOT NULL,
	added_by TEXT NOT NULL,
	added_at INTEGER NOT NULL
);
`

// migration is one additive column change, applied only if the column is
// absent from the live schema.
type migration struct {
	table  string
	column string
	ddl    string
}

// pendingMigrations lists columns added after the initial schema. Empty
// today; the table exists so a future additive column has a home that
// re-runs as a no-op on an up-to-date database.
var pendingMigrations = []migration{}

// migrate applies baseSchema, then walks pendingMigrations, skipping any
// column already present per PRAGMA table_info.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("applying base schema: %w", err)
	}

	for _, m := range pendingMigrations {
		has, err := hasColumn(ctx, s.db, m.table, m.column)
		if err != nil {
			return fmt.Errorf("introspecting %s.%s: %w", m.table, m.column, err)
		}
		if has {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("applying migration %s.%s: %w", m.table, m.column, err)
		}
		s.logger.Info().Str("table", m.table).Str("column", m.column).Msg("Applied additive migration")
	}

	return nil
}

// hasColumn reports whether table already has column, per a live
// PRAGMA table_info introspection.
func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
