// Package app assembles academyd from its configuration: the settings
// store and its backend, the lock, the job runner, the scheduler and the
// HTTP gateway.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/academyops/academyd/internal/academy"
	"github.com/academyops/academyd/internal/audit"
	"github.com/academyops/academyd/internal/config"
	"github.com/academyops/academyd/internal/cron"
	"github.com/academyops/academyd/internal/gateway"
	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/lock"
	"github.com/academyops/academyd/internal/logging"
	"github.com/academyops/academyd/internal/settings"
	"github.com/academyops/academyd/internal/store/memory"
	"github.com/academyops/academyd/internal/store/mongo"
	"github.com/academyops/academyd/internal/store/redis"
	"github.com/academyops/academyd/internal/store/sqlite"
	"github.com/academyops/academyd/internal/telemetry"
)

// Options tunes Build.
type Options struct {
	// Version is reported in traces.
	Version string

	// Logger replaces the logger built from the log section.
	Logger *slog.Logger

	// Service replaces the SQLite academy adapter.
	Service jobs.Service
}

// App holds the assembled process.
type App struct {
	Logger    *slog.Logger
	Settings  *settings.Store
	Locks     *lock.Manager
	Runner    *jobs.Runner
	Scheduler *cron.Scheduler
	Gateway   *gateway.Gateway
	Audit     *audit.Logger
	Registry  *prometheus.Registry

	dbs     map[string]*sql.DB
	closers []func(context.Context) error
	life    lifecycle
}

// Build wires every component described by cfg. The settings record is
// seeded from seed if it does not exist yet. Nothing is started; call Run
// for a long-running process or use the exported fields directly.
func Build(ctx context.Context, cfg *config.Config, seed settings.Seed, opts Options) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := a.buildLogger(cfg, opts); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, opts.Version)
	if err != nil {
		return nil, err
	}
	a.onClose(func(ctx context.Context) error { return shutdown(ctx) })

	repo, err := a.openRepository(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	a.Settings, err = settings.NewStore(settings.StoreConfig{
		Repository: repo,
		Seed:       &seed,
		CacheTTL:   cfg.Store.CacheTTL,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	created, err := a.Settings.SeedIfEmpty(ctx, seed)
	if err != nil {
		return nil, err
	}
	if created {
		a.Logger.Info("app: settings seeded", "backend", cfg.Store.Backend)
	}

	a.Locks, err = lock.NewManager(lock.Config{
		Store:  a.Settings,
		Owner:  cfg.Jobs.Owner,
		Logger: a.Logger,
	})
	if err != nil {
		return nil, err
	}

	svc := opts.Service
	if svc == nil {
		svc, err = a.openAcademy(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.buildAudit(cfg.Audit, cfg.Log); err != nil {
		return nil, err
	}

	rc := jobs.RunnerConfig{
		Settings:  a.Settings,
		Locks:     a.Locks,
		Service:   svc,
		LockLease: cfg.Jobs.LockLease,
		Logger:    a.Logger,
		Metrics:   jobs.NewMetrics(a.Registry),
	}
	if a.Audit != nil {
		rc.Audit = a.Audit
	}
	a.Runner, err = jobs.NewRunner(rc)
	if err != nil {
		return nil, err
	}

	a.life.logger = a.Logger
	var sched gateway.Scheduler
	if cfg.Scheduler.IsEnabled() {
		a.Scheduler, err = cron.NewScheduler(cron.SchedulerConfig{
			Runner:       a.Runner,
			Settings:     a.Settings,
			Logger:       a.Logger,
			SyncInterval: cfg.Scheduler.SyncInterval,
		})
		if err != nil {
			return nil, err
		}
		sched = a.Scheduler
		a.life.add("scheduler", a.Scheduler)
	}

	if cfg.Gateway.IsEnabled() {
		a.Gateway, err = gateway.New(gateway.Options{
			Config:     cfg.Gateway,
			Settings:   a.Settings,
			Locks:      a.Locks,
			Runner:     a.Runner,
			Scheduler:  sched,
			Health:     repo,
			Audit:      a.Audit,
			Gatherer:   a.Registry,
			Registerer: a.Registry,
			Logger:     a.Logger,
		})
		if err != nil {
			return nil, err
		}
		a.life.add("gateway", a.Gateway)
	}

	return a, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildLogger(cfg *config.Config, opts Options) error {
	if opts.Logger != nil {
		a.Logger = opts.Logger
		return nil
	}
	logger, closer, err := logging.New(cfg.Log, cfg.Secrets()...)
	if err != nil {
		return err
	}
	a.Logger = logger
	a.onClose(func(context.Context) error { return closer.Close() })
	return nil
}

// openRepository connects the configured settings backend.
func (a *App) openRepository(ctx context.Context, sc config.StoreConfig) (settings.Repository, error) {
	switch sc.Backend {
	case config.BackendMemory:
		a.Logger.Warn("app: settings kept in memory, changes are lost on exit")
		return memory.New(), nil
	case config.BackendSQLite:
		db, err := a.openSQLite(ctx, sc.SQLite)
		if err != nil {
			return nil, err
		}
		repo, err := sqlite.New(ctx, db, a.Logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendMongo:
		repo, err := mongo.Connect(ctx, sc.Mongo)
		if err != nil {
			return nil, err
		}
		a.onClose(repo.Close)
		return repo, nil
	case config.BackendRedis:
		repo, err := redis.Connect(ctx, sc.Redis, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return repo.Close() })
		return repo, nil
	default:
		return nil, fmt.Errorf("app: unknown store backend %q", sc.Backend)
	}
}

// openSQLite opens a database once per file.
func (a *App) openSQLite(ctx context.Context, cfg sqlite.Config) (*sql.DB, error) {
	cfg.Defaults()
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		path = cfg.Path
	}
	if a.dbs == nil {
		a.dbs = make(map[string]*sql.DB)
	}
	if db, ok := a.dbs[path]; ok {
		return db, nil
	}
	db, err := sqlite.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbs[path] = db
	a.onClose(func(context.Context) error { return db.Close() })
	return db, nil
}

func (a *App) openAcademy(ctx context.Context, cfg *config.Config) (jobs.Service, error) {
	db, err := a.openSQLite(ctx, cfg.Academy.Database)
	if err != nil {
		return nil, err
	}

	var notifier academy.Notifier
	switch cfg.Academy.Notifier.Kind {
	case config.NotifierHTTP:
		nc := cfg.Academy.Notifier
		notifier, err = academy.NewHTTPNotifier(academy.HTTPNotifierConfig{
			Endpoint:     nc.Endpoint,
			APIKey:       nc.APIKey,
			SenderKey:    nc.SenderKey,
			TemplateCode: nc.TemplateCode,
			Timeout:      nc.Timeout,
		})
		if err != nil {
			return nil, err
		}
	default:
		notifier = &academy.LogNotifier{Logger: a.Logger}
	}

	return academy.New(ctx, academy.Config{
		DB:          db,
		Notifier:    notifier,
		AcademyName: cfg.Academy.AcademyName,
		Logger:      a.Logger,
	})
}

// buildAudit opens the rotated audit file when a path is configured.
func (a *App) buildAudit(ac config.AuditConfig, lc logging.Config) error {
	if ac.Path == "" {
		return nil
	}
	var w io.WriteCloser = &lumberjack.Logger{
		Filename:   ac.Path,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress != nil && *lc.Compress,
	}
	a.Audit = audit.New(audit.Config{Writer: w})
	a.onClose(func(context.Context) error { return w.Close() })
	return nil
}

// Start starts the scheduler and gateway.
func (a *App) Start() error {
	return a.life.start()
}

// Stop stops whatever Start started, in reverse order.
func (a *App) Stop() {
	a.life.stop()
}

// Run starts the components and blocks until ctx is cancelled or SIGINT
// or SIGTERM arrives, then stops them and releases resources.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return err
	}
	a.Logger.Info("app: running")

	<-ctx.Done()
	a.Logger.Info("app: shutdown signal received")

	a.Stop()
	a.Logger.Info("app: shutdown complete")
	return a.Close(context.Background())
}

// Close releases backends, files and exporters in reverse order of
// acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
