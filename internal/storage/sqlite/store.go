// Package sqlite is the embedded relational Store: write-ahead logging,
// foreign-key enforcement, and additive schema migrations guarded by a
// live introspection of existing columns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/bobmcallan/palette/internal/common"
)

// Store is the embedded relational persistence layer for jobs, upscale
// jobs, and banned words.
type Store struct {
	db     *sql.DB
	logger *common.Logger
	mu     sync.Mutex // serializes concurrent PurgeOld calls; other methods do not take it
}

// Open opens (creating if absent) the SQLite database at path, enables WAL
// mode and foreign keys, and applies pending migrations.
func Open(path string, logger *common.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 serializes writers anyway; avoid "database is locked" races

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database %q: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite database %q: %w", path, err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for testing and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}
