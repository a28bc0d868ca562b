// Package logging builds the process slog.Logger: text or JSON output,
// optional size-rotated log files, and redaction of secrets and phone
// numbers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log output.
type Config struct {
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`

	// Level is debug, info (default), warn or error.
	Level string `yaml:"level"`

	// File, when set, receives logs instead of stderr and is rotated by size.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   *bool  `yaml:"compress"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 10
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
	if c.Compress == nil {
		t := true
		c.Compress = &t
	}
}

// Validate checks format and level.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging: unknown format %q (want text or json)", c.Format)
	}
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// New builds a logger writing to stderr or the configured file. secrets
// are redacted verbatim wherever they appear. The returned closer flushes
// and closes the log file; it is a no-op for stderr.
func New(cfg Config, secrets ...string) (*slog.Logger, io.Closer, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   *cfg.Compress,
			LocalTime:  true,
		}
		w, closer = lj, lj
	}

	return NewWithWriter(w, cfg, secrets...), closer, nil
}

// NewWithWriter builds a logger on w. cfg is assumed valid.
func NewWithWriter(w io.Writer, cfg Config, secrets ...string) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	r := NewRedactor()
	for _, s := range secrets {
		r.AddLiteral(s)
	}
	return slog.New(NewRedactingHandler(h, r))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
