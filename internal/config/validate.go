package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a Config with defaults
// applied. Every problem is reported, not just the first.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateStore(cfg.Store)...)

	if cfg.Jobs.LockLease < 0 {
		errs = append(errs, fmt.Errorf("config: jobs.lock_lease must be positive, got %s", cfg.Jobs.LockLease))
	}
	if cfg.Scheduler.SyncInterval < 0 {
		errs = append(errs, fmt.Errorf("config: scheduler.sync_interval must be positive, got %s", cfg.Scheduler.SyncInterval))
	}

	errs = append(errs, validateAcademy(cfg.Academy)...)

	if err := cfg.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: log: %w", err))
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: telemetry: %w", err))
	}
	if cfg.Gateway.IsEnabled() {
		if err := cfg.Gateway.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}
	if cfg.Gateway.Auth.BasicUser != "" && cfg.Gateway.Auth.BasicPass == "" {
		errs = append(errs, errors.New("config: gateway.auth.basic_pass is required when basic_user is set"))
	}

	return errors.Join(errs...)
}

func validateStore(s StoreConfig) []error {
	var errs []error
	switch s.Backend {
	case BackendSQLite:
		if err := s.SQLite.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: store.sqlite: %w", err))
		}
	case BackendMongo:
		if s.Mongo.URI == "" {
			errs = append(errs, errors.New("config: store.mongo.uri is required for the mongo backend"))
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			errs = append(errs, errors.New("config: store.redis.url is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.backend %q (want sqlite, mongo, redis or memory)", s.Backend))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("config: store.cache_ttl must be positive, got %s", s.CacheTTL))
	}
	return errs
}

func validateAcademy(a AcademyConfig) []error {
	var errs []error
	if err := a.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: academy.database: %w", err))
	}
	switch a.Notifier.Kind {
	case NotifierLog:
	case NotifierHTTP:
		if a.Notifier.Endpoint == "" {
			errs = append(errs, errors.New("config: academy.notifier.endpoint is required for the http notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown academy.notifier.kind %q (want log or http)", a.Notifier.Kind))
	}
	return errs
}
