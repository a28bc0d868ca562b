// Package memory is an in-process settings repository for tests and
// single-node development runs. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/academyops/academyd/internal/settings"
)

// Repository keeps the settings record in memory.
type Repository struct {
	mu  sync.Mutex
	rec *settings.CronSettings
}

// New returns an empty repository.
func New() *Repository { return &Repository{} }

// Load implements settings.Repository.
func (r *Repository) Load(_ context.Context) (settings.CronSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return settings.CronSettings{}, settings.ErrNotFound
	}
	return r.rec.Clone(), nil
}

// Save implements settings.Repository.
func (r *Repository) Save(_ context.Context, s settings.CronSettings) error {
	cp := s.Clone()
	r.mu.Lock()
	r.rec = &cp
	r.mu.Unlock()
	return nil
}

// Create implements settings.Repository.
func (r *Repository) Create(_ context.Context, s settings.CronSettings) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		return false, nil
	}
	cp := s.Clone()
	r.rec = &cp
	return true, nil
}

// Ping implements settings.Repository.
func (r *Repository) Ping(context.Context) error { return nil }
