// Package gateway exposes health, metrics and the admin API for the
// scheduled jobs over HTTP. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/academyops/academyd/internal/audit"
	"github.com/academyops/academyd/internal/cron"
	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/lock"
	"github.com/academyops/academyd/internal/settings"
)

// SettingsStore is the subset of settings.Store the admin API needs.
type SettingsStore interface {
	Get(ctx context.Context) (settings.CronSettings, error)
	GetFresh(ctx context.Context) (settings.CronSettings, error)
	Update(ctx context.Context, patch settings.Patch, updatedBy string) (settings.CronSettings, error)
}

// Locks inspects and breaks the shared job lock.
type Locks interface {
	State(ctx context.Context) (lock.State, error)
	ForceRelease(ctx context.Context) (lock.State, error)
}

// Runner executes one job on demand.
type Runner interface {
	Run(ctx context.Context, req jobs.Request) jobs.Result
}

// Scheduler is the optional in-process cron scheduler.
type Scheduler interface {
	Entries() []cron.Entry
	Sync(ctx context.Context) error
}

// Pinger reports whether the settings backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires a Gateway.
type Options struct {
	Config   Config
	Settings SettingsStore
	Locks    Locks
	Runner   Runner

	// Scheduler is nil when the scheduler is disabled.
	Scheduler Scheduler

	// Health is pinged by GET /health. Nil reports ok.
	Health Pinger

	Audit *audit.Logger

	// Gatherer serves GET /metrics. Registerer receives the gateway's own
	// collectors. Both may be nil.
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Gateway is the HTTP server.
type Gateway struct {
	config    Config
	settings  SettingsStore
	locks     Locks
	runner    Runner
	scheduler Scheduler
	health    Pinger
	audit     *audit.Logger
	gatherer  prometheus.Gatherer
	metrics   *Metrics
	limiter   *slidingWindow
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New validates opts and builds a Gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Settings == nil {
		return nil, errors.New("gateway: settings store is required")
	}
	if opts.Locks == nil {
		return nil, errors.New("gateway: lock manager is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("gateway: job runner is required")
	}
	cfg := opts.Config
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		settings:  opts.Settings,
		locks:     opts.Locks,
		runner:    opts.Runner,
		scheduler: opts.Scheduler,
		health:    opts.Health,
		audit:     opts.Audit,
		gatherer:  opts.Gatherer,
		metrics:   NewMetrics(opts.Registerer),
		limiter:   newSlidingWindow(cfg.AuthAttemptsPerMin, time.Minute),
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.Handler(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}
