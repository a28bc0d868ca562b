// Package lock provides the advisory, time-boxed run lease stored in the
// settings record. A crashed holder's lease simply expires.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/academyops/academyd/internal/settings"
)

// DefaultLease is used when Acquire is given a non-positive duration.
const DefaultLease = 5 * time.Minute

var (
	// ErrLocked is returned by Acquire while another holder's lease is active.
	ErrLocked = errors.New("lock: held by another runner")

	// ErrLostLease is returned by Release when the lease expired and was
	// taken over, or was force-released, before the holder released it.
	ErrLostLease = errors.New("lock: lease no longer held")
)

// Lease identifies one successful acquisition.
type Lease struct {
	Owner string
	Until time.Time
}

// State describes the lock as currently stored.
type State struct {
	Held  bool       `json:"held"`
	Owner string     `json:"owner,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// Store is the subset of settings.Store the manager needs.
type Store interface {
	Modify(ctx context.Context, updatedBy string, fn func(*settings.CronSettings) error) (settings.CronSettings, error)
	SetLock(ctx context.Context, until *time.Time, owner string) (settings.CronSettings, error)
	GetFresh(ctx context.Context) (settings.CronSettings, error)
}

// Config configures a Manager.
type Config struct {
	Store Store

	// Owner names this process in lock records. Defaults to hostname:pid.
	Owner string

	Logger *slog.Logger
	Now    func() time.Time
}

// Manager acquires and releases the shared run lease.
type Manager struct {
	store  Store
	owner  string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("lock: store is required")
	}
	owner := cfg.Owner
	if owner == "" {
		owner = DefaultOwner()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: cfg.Store, owner: owner, logger: logger, now: now}, nil
}

// DefaultOwner returns hostname:pid.
func DefaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// Owner returns the process-level owner name.
func (m *Manager) Owner() string { return m.owner }

// Acquire takes the lease for d, or DefaultLease when d <= 0. The expiry
// check and the write happen in one read-modify-write.
func (m *Manager) Acquire(ctx context.Context, d time.Duration) (Lease, error) {
	if d <= 0 {
		d = DefaultLease
	}
	lease := Lease{Owner: m.owner + "/" + uuid.NewString()}

	_, err := m.store.Modify(ctx, "", func(rec *settings.CronSettings) error {
		now := m.now()
		if rec.Locked(now) {
			return ErrLocked
		}
		lease.Until = now.Add(d)
		until := lease.Until
		rec.LockUntil = &until
		rec.LockOwner = lease.Owner
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return Lease{}, err
		}
		return Lease{}, fmt.Errorf("lock: acquire: %w", err)
	}
	m.logger.Debug("lock: acquired", "owner", lease.Owner, "until", lease.Until)
	return lease, nil
}

// Release clears the lock if it is still held by lease. Otherwise it
// returns ErrLostLease and leaves the current holder in place.
func (m *Manager) Release(ctx context.Context, lease Lease) error {
	_, err := m.store.Modify(ctx, "", func(rec *settings.CronSettings) error {
		if rec.LockUntil == nil || rec.LockOwner != lease.Owner {
			return ErrLostLease
		}
		rec.LockUntil = nil
		rec.LockOwner = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLostLease) {
			return err
		}
		return fmt.Errorf("lock: release: %w", err)
	}
	m.logger.Debug("lock: released", "owner", lease.Owner)
	return nil
}

// ForceRelease clears the lock regardless of holder and returns the state
// that was cleared.
func (m *Manager) ForceRelease(ctx context.Context) (State, error) {
	prev, err := m.State(ctx)
	if err != nil {
		return State{}, err
	}
	if _, err := m.store.SetLock(ctx, nil, ""); err != nil {
		return State{}, fmt.Errorf("lock: force release: %w", err)
	}
	m.logger.Warn("lock: force released", "previous_owner", prev.Owner)
	return prev, nil
}

// State reports the stored lock.
func (m *Manager) State(ctx context.Context) (State, error) {
	rec, err := m.store.GetFresh(ctx)
	if err != nil {
		return State{}, fmt.Errorf("lock: state: %w", err)
	}
	return State{Held: rec.Locked(m.now()), Owner: rec.LockOwner, Until: rec.LockUntil}, nil
}
