package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	Repository Repository

	// Seed supplies first-read defaults. Zero value means DefaultSeed.
	Seed *Seed

	// CacheTTL bounds how long Get may serve a cached record. Zero means
	// DefaultCacheTTL; negative disables caching.
	CacheTTL time.Duration

	Logger *slog.Logger

	// Now is the clock used for cache expiry and update stamps.
	Now func() time.Time
}

// Store owns the settings record: it caches reads and serializes every
// write in this process as a full read-modify-write of the record.
type Store struct {
	repo   Repository
	seed   Seed
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	// writeMu serializes Modify so concurrent writers in one process never
	// lose each other's updates.
	writeMu sync.Mutex

	mu       sync.RWMutex
	cached   *CronSettings
	cachedAt time.Time
}

// NewStore creates a Store backed by cfg.Repository.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Repository == nil {
		return nil, errors.New("settings: repository is required")
	}
	seed := DefaultSeed()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:   cfg.Repository,
		seed:   seed,
		ttl:    ttl,
		logger: logger,
		now:    now,
	}, nil
}

// Repository returns the backing repository.
func (s *Store) Repository() Repository { return s.repo }

// SeedIfEmpty creates the record from seed when none exists. It returns
// false, leaving the stored record untouched, when one already exists.
func (s *Store) SeedIfEmpty(ctx context.Context, seed Seed) (bool, error) {
	rec := seed.Settings()
	if err := rec.Validate(); err != nil {
		return false, err
	}
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("settings: seed: %w", err)
	}
	if created {
		s.logger.Info("settings: seeded defaults",
			"auto_leave_enabled", rec.AutoLeaveEnabled,
			"auto_report_enabled", rec.AutoReportEnabled,
			"dry_run", rec.DryRun,
			"timezone", rec.Timezone,
		)
		s.invalidate()
	}
	return created, nil
}

// Get returns the normalized settings, served from cache when it is
// younger than the TTL.
func (s *Store) Get(ctx context.Context) (CronSettings, error) {
	if rec, ok := s.fromCache(); ok {
		return rec, nil
	}
	return s.GetFresh(ctx)
}

// GetFresh reads the record from the repository, bypassing the cache, and
// refreshes the cache with the result.
func (s *Store) GetFresh(ctx context.Context) (CronSettings, error) {
	rec, err := s.load(ctx)
	if err != nil {
		return CronSettings{}, err
	}
	s.store(rec)
	return rec.Clone(), nil
}

// Modify runs a read-modify-write on the record. fn receives a fresh copy
// and may return an error to abort without persisting. The result is
// validated before it is saved. A non-empty updatedBy stamps the audit fields.
func (s *Store) Modify(ctx context.Context, updatedBy string, fn func(*CronSettings) error) (CronSettings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return CronSettings{}, err
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return CronSettings{}, err
	}
	next = next.withDefaults(s.seed)
	if err := next.Validate(); err != nil {
		return CronSettings{}, err
	}
	if updatedBy != "" {
		now := s.now()
		next.UpdatedBy = updatedBy
		next.UpdatedAt = &now
	}

	if err := s.repo.Save(ctx, next); err != nil {
		s.invalidate()
		return CronSettings{}, fmt.Errorf("settings: save: %w", err)
	}
	s.store(next)
	return next.Clone(), nil
}

// Update merges patch onto the freshest record and persists it. An invalid
// cron expression or timezone is rejected and the stored value is kept.
func (s *Store) Update(ctx context.Context, patch Patch, updatedBy string) (CronSettings, error) {
	return s.Modify(ctx, updatedBy, func(rec *CronSettings) error {
		patch.Apply(rec)
		return nil
	})
}

// SetLock sets or clears the lock fields. A nil until clears the lock.
func (s *Store) SetLock(ctx context.Context, until *time.Time, owner string) (CronSettings, error) {
	return s.Modify(ctx, "", func(rec *CronSettings) error {
		rec.LockUntil = cloneTime(until)
		rec.LockOwner = owner
		if until == nil {
			rec.LockOwner = ""
		}
		return nil
	})
}

// load reads, lazily seeds, and normalizes the record.
func (s *Store) load(ctx context.Context) (CronSettings, error) {
	rec, err := s.repo.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		if _, err := s.SeedIfEmpty(ctx, s.seed); err != nil {
			return CronSettings{}, err
		}
		rec, err = s.repo.Load(ctx)
	}
	if err != nil {
		return CronSettings{}, fmt.Errorf("settings: load: %w", err)
	}
	return s.normalize(rec), nil
}

// normalize fills defaults and replaces invalid values so a read never
// fails on bad stored content.
func (s *Store) normalize(rec CronSettings) CronSettings {
	rec = rec.withDefaults(s.seed)
	rec, problems := rec.repair(s.seed)
	for _, p := range problems {
		s.logger.Warn("settings: invalid stored value replaced with default", "error", p)
	}
	return rec
}

func (s *Store) fromCache() (CronSettings, bool) {
	if s.ttl < 0 {
		return CronSettings{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.now().Sub(s.cachedAt) >= s.ttl {
		return CronSettings{}, false
	}
	return s.cached.Clone(), true
}

func (s *Store) store(rec CronSettings) {
	cp := rec.Clone()
	s.mu.Lock()
	s.cached = &cp
	s.cachedAt = s.now()
	s.mu.Unlock()
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
