// Package academy implements jobs.Service against the academy's
// attendance and lesson-log database: closing forgotten check-outs and
// sending daily lesson reports to parents.
package academy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/store/sqlite"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id           INTEGER PRIMARY KEY,
		name         TEXT    NOT NULL,
		parent_phone TEXT    NOT NULL DEFAULT '',
		active       INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS attendance (
		id           INTEGER PRIMARY KEY,
		student_id   INTEGER NOT NULL REFERENCES students(id),
		day          TEXT    NOT NULL,
		check_in_at  TEXT,
		check_out_at TEXT,
		status       TEXT    NOT NULL DEFAULT 'present'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day, check_out_at)`,

	`CREATE TABLE IF NOT EXISTS lesson_logs (
		id             INTEGER PRIMARY KEY,
		student_id     INTEGER NOT NULL REFERENCES students(id),
		day            TEXT    NOT NULL,
		content        TEXT    NOT NULL DEFAULT '',
		homework       TEXT    NOT NULL DEFAULT '',
		teacher        TEXT    NOT NULL DEFAULT '',
		report_sent_at TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_lesson_logs_day ON lesson_logs(day, report_sent_at)`,
}

// Config configures a Service.
type Config struct {
	DB       *sql.DB
	Notifier Notifier

	// AcademyName prefixes every parent message.
	AcademyName string

	Logger *slog.Logger
}

// Service implements jobs.Service.
type Service struct {
	db       *sql.DB
	notifier Notifier
	name     string
	logger   *slog.Logger
}

// Compile-time interface check.
var _ jobs.Service = (*Service)(nil)

// New migrates the academy schema on cfg.DB and returns a Service.
func New(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("academy: database is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = &LogNotifier{Logger: logger}
	}
	if err := sqlite.Migrate(ctx, cfg.DB, "academy", schemaVersion, schemaStatements); err != nil {
		return nil, fmt.Errorf("academy: %w", err)
	}
	return &Service{db: cfg.DB, notifier: notifier, name: cfg.AcademyName, logger: logger}, nil
}

const dayLayout = "2006-01-02"

// dbQuerier is satisfied by *sql.DB and *sql.Tx.
type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func limitOf(opts jobs.Options) int {
	if opts.Limit <= 0 {
		return -1 // SQLite: no limit
	}
	return opts.Limit
}
