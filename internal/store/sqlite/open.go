// Package sqlite stores the settings record in SQLite using
// modernc.org/sqlite (pure Go, no CGO). Open and Migrate are shared with
// the academy database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens the database at cfg.Path with a single connection (SQLite
// serialises writes), the configured busy timeout, and WAL when enabled.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate applies stmts for component when its recorded schema version is
// below version. Statements must be idempotent.
func Migrate(ctx context.Context, db *sql.DB, component string, version int, stmts []string) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		component TEXT PRIMARY KEY,
		version   INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version WHERE component = ?", component,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("sqlite: read schema version for %s: %w", component, err)
	}
	if current >= version {
		return nil
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate %s: %w\nstatement: %s", component, err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (component, version) VALUES (?, ?)", component, version,
	); err != nil {
		return fmt.Errorf("sqlite: record schema version for %s: %w", component, err)
	}
	return nil
}
