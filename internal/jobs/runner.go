package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/academyops/academyd/internal/lock"
	"github.com/academyops/academyd/internal/settings"
)

const tracerName = "github.com/academyops/academyd/internal/jobs"

// SettingsStore is the subset of settings.Store the runner needs.
type SettingsStore interface {
	Get(ctx context.Context) (settings.CronSettings, error)
	Update(ctx context.Context, patch settings.Patch, updatedBy string) (settings.CronSettings, error)
}

// Locker is the subset of lock.Manager the runner needs.
type Locker interface {
	Acquire(ctx context.Context, lease time.Duration) (lock.Lease, error)
	Release(ctx context.Context, lease lock.Lease) error
}

// AuditRecorder receives one record per finished run.
type AuditRecorder interface {
	RecordJobRun(job, outcome, reason, runKey string, force bool, errMsg string)
}

// Request asks the runner to execute one job.
type Request struct {
	Job Type

	// Now overrides the effective time. It is converted to the configured
	// timezone before the run key is computed.
	Now *time.Time

	// Force bypasses the enabled flag and the run-key check. The lock is
	// still required.
	Force bool
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Settings SettingsStore
	Locks    Locker
	Service  Service

	// LockLease is passed to Acquire. Zero uses lock.DefaultLease.
	LockLease time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
	Audit   AuditRecorder
	Now     func() time.Time

	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

// Runner executes jobs. It is safe for concurrent use; concurrent runs are
// arbitrated by the shared lease.
type Runner struct {
	settings SettingsStore
	locks    Locker
	service  Service
	lease    time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	audit    AuditRecorder
	now      func() time.Time
	tracer   trace.Tracer
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Settings == nil:
		return nil, errors.New("jobs: settings store is required")
	case cfg.Locks == nil:
		return nil, errors.New("jobs: lock manager is required")
	case cfg.Service == nil:
		return nil, errors.New("jobs: service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Runner{
		settings: cfg.Settings,
		locks:    cfg.Locks,
		service:  cfg.Service,
		lease:    cfg.LockLease,
		logger:   logger,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
		now:      now,
		tracer:   tracer,
	}, nil
}

// Run executes one job and always returns a Result; service failures and
// panics become the error outcome.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	ctx, span := r.tracer.Start(ctx, "jobs.Run", trace.WithAttributes(
		attribute.String("job", string(req.Job)),
		attribute.Bool("force", req.Force),
	))
	defer span.End()

	start := r.now()
	res, reachedService := r.run(ctx, req)

	var elapsed time.Duration
	if reachedService {
		elapsed = r.now().Sub(start)
	}
	r.metrics.observe(res, elapsed)
	if r.audit != nil {
		r.audit.RecordJobRun(string(res.Job), string(res.Outcome), string(res.Reason), res.RunKey, req.Force, res.Error)
	}

	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.String("run_key", res.RunKey),
	)
	switch res.Outcome {
	case OutcomeError:
		span.SetStatus(codes.Error, res.Error)
		r.logger.Error("jobs: run failed", "job", res.Job, "run_key", res.RunKey, "error", res.Error)
	case OutcomeSkipped:
		span.SetAttributes(attribute.String("reason", string(res.Reason)))
		r.logger.Info("jobs: run skipped", "job", res.Job, "reason", res.Reason, "run_key", res.RunKey)
	default:
		r.logger.Info("jobs: run completed",
			"job", res.Job,
			"run_key", res.RunKey,
			"dry_run", res.DryRun,
			"processed", res.Processed,
			"preview", len(res.Preview),
		)
	}
	return res
}

func (r *Runner) run(ctx context.Context, req Request) (Result, bool) {
	job := req.Job
	if _, err := ParseType(string(job)); err != nil {
		return failed(job, "", err), false
	}

	cfg, err := r.settings.Get(ctx)
	if err != nil {
		return failed(job, "", err), false
	}

	if !enabled(cfg, job) && !req.Force {
		return skipped(job, ReasonDisabled, ""), false
	}

	loc := cfg.Location()
	now := r.now().In(loc)
	if req.Now != nil {
		now = req.Now.In(loc)
	}
	runKey := RunKey(now, job)

	if !req.Force && cfg.LastRunKeys[string(job)] == runKey {
		return skipped(job, ReasonAlreadyRan, runKey), false
	}

	lease, err := r.locks.Acquire(ctx, r.lease)
	if errors.Is(err, lock.ErrLocked) {
		return skipped(job, ReasonLocked, runKey), false
	}
	if err != nil {
		return failed(job, runKey, err), false
	}
	defer r.release(ctx, job, lease)

	opts := Options{Limit: cfg.RateLimitPerRun, Now: now}
	res, err := r.execute(ctx, job, cfg.DryRun, opts)
	if err != nil {
		return failed(job, runKey, err), true
	}
	res.RunKey = runKey

	if err := r.record(ctx, job, runKey); err != nil {
		return failed(job, runKey, fmt.Errorf("jobs: record run: %w", err)), true
	}
	return res, true
}

// execute calls the hook for job and recovers a panic into an error.
func (r *Runner) execute(ctx context.Context, job Type, dryRun bool, opts Options) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("jobs: %s panicked: %v", job, p)
		}
	}()

	res = Result{Job: job, Outcome: OutcomeOK, DryRun: dryRun}
	if dryRun {
		var p Preview
		switch job {
		case AutoLeave:
			p, err = r.service.PreviewAutoLeave(ctx, opts)
		case DailyReport:
			p, err = r.service.PreviewDailyReport(ctx, opts)
		}
		if err != nil {
			return Result{}, err
		}
		res.Preview = r.clamp(job, p.List, opts.Limit)
		return res, nil
	}

	var done Performed
	switch job {
	case AutoLeave:
		done, err = r.service.PerformAutoLeave(ctx, opts)
	case DailyReport:
		done, err = r.service.PerformDailyReport(ctx, opts)
	}
	if err != nil {
		return Result{}, err
	}
	res.Processed = done.Processed
	res.Preview = r.clamp(job, done.Preview, opts.Limit)
	return res, nil
}

// clamp truncates a list a hook returned beyond its limit.
func (r *Runner) clamp(job Type, items []Item, limit int) []Item {
	if limit > 0 && len(items) > limit {
		r.logger.Warn("jobs: service returned more items than the limit",
			"job", job, "limit", limit, "returned", len(items))
		return items[:limit]
	}
	return items
}

// record stamps the last-run time and run key for job.
func (r *Runner) record(ctx context.Context, job Type, runKey string) error {
	stamp := r.now()
	patch := settings.Patch{LastRunKeys: map[string]string{string(job): runKey}}
	switch job {
	case AutoLeave:
		patch.LastAutoLeaveRunAt = &stamp
	case DailyReport:
		patch.LastAutoReportRunAt = &stamp
	}
	_, err := r.settings.Update(ctx, patch, "cron:"+string(job))
	return err
}

func (r *Runner) release(ctx context.Context, job Type, lease lock.Lease) {
	if err := r.locks.Release(context.WithoutCancel(ctx), lease); err != nil {
		r.logger.Warn("jobs: lock release failed", "job", job, "owner", lease.Owner, "error", err)
	}
}

func enabled(cfg settings.CronSettings, job Type) bool {
	switch job {
	case AutoLeave:
		return cfg.AutoLeaveEnabled
	case DailyReport:
		return cfg.AutoReportEnabled
	}
	return false
}
