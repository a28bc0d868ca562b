package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/academyops/academyd/internal/jobs"
)

// DefaultSyncInterval is how often the scheduler re-reads settings when
// SchedulerConfig.SyncInterval is zero.
const DefaultSyncInterval = time.Minute

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Runner   Runner
	Settings SettingsReader
	Logger   *slog.Logger

	// SyncInterval is how often stored schedules are re-read. Negative
	// disables periodic sync; Sync can still be called directly.
	SyncInterval time.Duration
}

// Entry describes one registered job.
type Entry struct {
	Job  jobs.Type `json:"job"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

type registration struct {
	id   cron.EntryID
	spec string
}

// Scheduler runs each job on its stored schedule. Each job has its own
// mutex so a tick that overlaps a still-running one is skipped.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	runner   Runner
	settings SettingsReader
	entries  map[jobs.Type]registration
	locks    map[jobs.Type]*sync.Mutex
	logger   *slog.Logger
	interval time.Duration

	// ctx stops the sync loop. runCtx is handed to job runs and outlives
	// ctx so Stop can drain in-flight runs before cancelling them.
	ctx       context.Context
	cancel    context.CancelFunc
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start to begin firing.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("cron: runner is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("cron: settings are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.SyncInterval
	if interval == 0 {
		interval = DefaultSyncInterval
	}

	locks := make(map[jobs.Type]*sync.Mutex, len(jobs.Types))
	for _, j := range jobs.Types {
		locks[j] = &sync.Mutex{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithParser(parser)),
		runner:   cfg.Runner,
		settings: cfg.Settings,
		entries:  make(map[jobs.Type]registration),
		locks:    locks,
		logger:   logger,
		interval: interval,
		ctx:       ctx,
		cancel:    cancel,
		runCtx:    runCtx,
		runCancel: runCancel,
	}, nil
}

// Start registers the stored schedules and begins executing them.
func (s *Scheduler) Start() error {
	if err := s.Sync(s.ctx); err != nil {
		return err
	}
	s.cron.Start()

	if s.interval > 0 {
		s.wg.Add(1)
		go s.syncLoop()
	}
	s.logger.Info("cron: scheduler started", "jobs", len(s.Entries()))
	return nil
}

// Stop halts scheduling and waits for in-flight runs to finish. If ctx
// ends first, the runs are cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	s.wg.Wait()
	defer s.runCancel()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: stop: %w", ctx.Err())
	}
}

// Sync re-reads settings and re-registers every job whose spec changed.
func (s *Scheduler) Sync(ctx context.Context) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("cron: read settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, job := range jobs.Types {
		spec := Spec(cfg, job)
		cur, ok := s.entries[job]
		if ok && cur.spec == spec {
			continue
		}

		id, err := s.cron.AddFunc(spec, s.tick(job))
		if err != nil {
			// Keep the previous entry firing rather than dropping the job.
			errs = append(errs, fmt.Errorf("cron: invalid schedule for job %q: %w", job, err))
			continue
		}
		if ok {
			s.cron.Remove(cur.id)
		}
		s.entries[job] = registration{id: id, spec: spec}
		s.logger.Info("cron: schedule registered", "job", job, "spec", spec)
	}
	return errors.Join(errs...)
}

// Entries lists the registered jobs with their next fire time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, job := range jobs.Types {
		reg, ok := s.entries[job]
		if !ok {
			continue
		}
		out = append(out, Entry{Job: job, Spec: reg.spec, Next: s.cron.Entry(reg.id).Next})
	}
	return out
}

func (s *Scheduler) tick(job jobs.Type) func() {
	return func() { s.runJob(job) }
}

func (s *Scheduler) runJob(job jobs.Type) {
	lock := s.locks[job]
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job)
		return
	}
	defer lock.Unlock()

	s.logger.Debug("cron: job started", "job", job)
	res := s.runner.Run(s.runCtx, jobs.Request{Job: job})
	s.logger.Debug("cron: job finished", "job", job, "outcome", res.Outcome)
}

func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(s.ctx); err != nil {
				s.logger.Error("cron: sync failed", "error", err)
			}
		}
	}
}
