package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academyops/academyd/internal/settings"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_settings (
		id         TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
}

// Compile-time interface check.
var _ settings.Repository = (*Repository)(nil)

// Repository stores the settings record as one JSON row.
type Repository struct {
	db     *sql.DB
	id     string
	logger *slog.Logger
}

// New migrates db and returns a repository over it. The caller owns db.
// A nil logger uses slog.Default.
func New(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Repository, error) {
	if err := Migrate(ctx, db, "settings", schemaVersion, schemaStatements); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, id: settings.RecordID, logger: logger}, nil
}

// Load implements settings.Repository. A row that does not decode yields an
// empty record so the store can fill defaults and rewrite it on the next save.
func (r *Repository) Load(ctx context.Context) (settings.CronSettings, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE id = ?", r.id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.CronSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.CronSettings{}, fmt.Errorf("sqlite: load settings: %w", err)
	}

	var s settings.CronSettings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		r.logger.Warn("sqlite: stored settings unreadable, using defaults", "id", r.id, "error", err)
		return settings.CronSettings{}, nil
	}
	return s, nil
}

// Save implements settings.Repository.
func (r *Repository) Save(ctx context.Context, s settings.CronSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sqlite: encode settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO app_settings (id, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		r.id, string(raw), nowText(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save settings: %w", err)
	}
	return nil
}

// Create implements settings.Repository.
func (r *Repository) Create(ctx context.Context, s settings.CronSettings) (bool, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("sqlite: encode settings: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO app_settings (id, value, updated_at) VALUES (?, ?, ?)",
		r.id, string(raw), nowText(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: create settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: create settings: %w", err)
	}
	return n == 1, nil
}

// Ping implements settings.Repository.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nowText() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
