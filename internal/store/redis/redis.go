// Package redis stores the settings record as a JSON string under a
// single Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/academyops/academyd/internal/settings"
)

const (
	defaultPrefix      = "academyd:"
	defaultDialTimeout = 3 * time.Second
)

// Config holds Redis connection options.
type Config struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// Compile-time interface check.
var _ settings.Repository = (*Repository)(nil)

// Repository implements settings.Repository over one key.
type Repository struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// Connect parses cfg.URL, dials, and pings.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("redis: url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return New(client, cfg.Prefix, logger), nil
}

// New wraps an existing client. An empty prefix uses "academyd:" and a nil
// logger uses slog.Default.
func New(client redis.UniversalClient, prefix string, logger *slog.Logger) *Repository {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{client: client, key: prefix + "settings:" + settings.RecordID, logger: logger}
}

// Key returns the Redis key holding the record.
func (r *Repository) Key() string { return r.key }

// Load implements settings.Repository.
func (r *Repository) Load(ctx context.Context) (settings.CronSettings, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings.CronSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.CronSettings{}, fmt.Errorf("redis: load settings: %w", err)
	}
	return r.decode(raw), nil
}

// decode parses a stored value. Unreadable content yields an empty record,
// which the store fills with defaults and rewrites on the next save.
func (r *Repository) decode(raw []byte) settings.CronSettings {
	var s settings.CronSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.Warn("redis: stored settings unreadable, using defaults", "key", r.key, "error", err)
		return settings.CronSettings{}
	}
	return s
}

// Save implements settings.Repository.
func (r *Repository) Save(ctx context.Context, s settings.CronSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode settings: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save settings: %w", err)
	}
	return nil
}

// Create implements settings.Repository with SETNX.
func (r *Repository) Create(ctx context.Context, s settings.CronSettings) (bool, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("redis: encode settings: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key, raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis: create settings: %w", err)
	}
	return ok, nil
}

// Ping implements settings.Repository.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Repository) Close() error {
	return r.client.Close()
}
