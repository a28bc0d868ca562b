// Package config loads the academyd YAML configuration file and the
// environment values that seed the cron settings record.
package config

import (
	"time"

	"github.com/academyops/academyd/internal/gateway"
	"github.com/academyops/academyd/internal/logging"
	"github.com/academyops/academyd/internal/store/mongo"
	"github.com/academyops/academyd/internal/store/redis"
	"github.com/academyops/academyd/internal/store/sqlite"
	"github.com/academyops/academyd/internal/telemetry"
)

// Settings store backends.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Notifier kinds.
const (
	NotifierLog  = "log"
	NotifierHTTP = "http"
)

// Config is the top-level configuration structure.
type Config struct {
	Version   string           `yaml:"version"`
	Store     StoreConfig      `yaml:"store"`
	Jobs      JobsConfig       `yaml:"jobs"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Academy   AcademyConfig    `yaml:"academy"`
	Gateway   gateway.Config   `yaml:"gateway"`
	Log       logging.Config   `yaml:"log"`
	Audit     AuditConfig      `yaml:"audit"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// StoreConfig selects where the settings record lives.
type StoreConfig struct {
	// Backend is sqlite (default), mongo, redis or memory.
	Backend string        `yaml:"backend"`
	SQLite  sqlite.Config `yaml:"sqlite"`
	Mongo   mongo.Config  `yaml:"mongo"`
	Redis   redis.Config  `yaml:"redis"`

	// CacheTTL bounds how stale a cached settings read may be.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// JobsConfig tunes the job runner.
type JobsConfig struct {
	// LockLease is how long a run holds the shared lock before it expires.
	LockLease time.Duration `yaml:"lock_lease"`

	// Owner names this process in lock records. Defaults to hostname:pid.
	Owner string `yaml:"owner"`
}

// SchedulerConfig controls the in-process cron scheduler.
type SchedulerConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// IsEnabled reports whether the scheduler should run. Defaults to true.
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AcademyConfig points at the attendance database and the parent
// messaging channel.
type AcademyConfig struct {
	Database    sqlite.Config  `yaml:"database"`
	AcademyName string         `yaml:"academy_name"`
	Notifier    NotifierConfig `yaml:"notifier"`
}

// NotifierConfig selects how daily reports are delivered.
type NotifierConfig struct {
	// Kind is log (default) or http.
	Kind         string        `yaml:"kind"`
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	SenderKey    string        `yaml:"sender_key"`
	TemplateCode string        `yaml:"template_code"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AuditConfig enables the audit trail.
type AuditConfig struct {
	// Path of the JSONL audit file. Empty disables auditing.
	Path string `yaml:"path"`
}

// Defaults fills every unset field.
func (c *Config) Defaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	c.Store.SQLite.Defaults()
	c.Store.Mongo.Defaults()
	if c.Store.CacheTTL == 0 {
		c.Store.CacheTTL = 30 * time.Second
	}
	if c.Jobs.LockLease == 0 {
		c.Jobs.LockLease = 5 * time.Minute
	}
	if c.Scheduler.SyncInterval == 0 {
		c.Scheduler.SyncInterval = time.Minute
	}
	c.Academy.Database.Defaults()
	if c.Academy.Notifier.Kind == "" {
		c.Academy.Notifier.Kind = NotifierLog
	}
	if c.Academy.Notifier.Timeout == 0 {
		c.Academy.Notifier.Timeout = 10 * time.Second
	}
	c.Gateway.Defaults()
	c.Log.Defaults()
	c.Telemetry.Defaults()
}

// Default returns a configuration usable without a file.
func Default() *Config {
	var c Config
	c.Defaults()
	return &c
}

// Secrets lists configured credentials so logs can redact them.
func (c *Config) Secrets() []string {
	return []string{
		c.Academy.Notifier.APIKey,
		c.Academy.Notifier.SenderKey,
		c.Gateway.Auth.BearerToken,
		c.Gateway.Auth.BasicPass,
	}
}
