package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/academyops/academyd/internal/audit"
	"github.com/academyops/academyd/internal/cron"
	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/lock"
	"github.com/academyops/academyd/internal/settings"
	"github.com/academyops/academyd/internal/store/memory"
)

const testToken = "secret-token"

// fakeRunner records requests and returns a canned result.
type fakeRunner struct {
	mu     sync.Mutex
	reqs   []jobs.Request
	result jobs.Result
}

func (f *fakeRunner) Run(_ context.Context, req jobs.Request) jobs.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	res := f.result
	res.Job = req.Job
	return res
}

func (f *fakeRunner) requests() []jobs.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jobs.Request(nil), f.reqs...)
}

type fakeScheduler struct {
	mu    sync.Mutex
	syncs int
}

func (s *fakeScheduler) Entries() []cron.Entry {
	return []cron.Entry{{Job: jobs.AutoLeave, Spec: "CRON_TZ=Asia/Seoul 0 23 * * *"}}
}

func (s *fakeScheduler) Sync(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs++
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	gw        *Gateway
	handler   http.Handler
	store     *settings.Store
	locks     *lock.Manager
	runner    *fakeRunner
	scheduler *fakeScheduler
	audit     *bytes.Buffer
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()

	repo := memory.New()
	store, err := settings.NewStore(settings.StoreConfig{Repository: repo})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	locks, err := lock.NewManager(lock.Config{Store: store, Owner: "test"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var auditBuf bytes.Buffer
	env := &testEnv{
		store:     store,
		locks:     locks,
		runner:    &fakeRunner{result: jobs.Result{Outcome: jobs.OutcomeSkipped, Reason: jobs.ReasonDisabled}},
		scheduler: &fakeScheduler{},
		audit:     &auditBuf,
	}

	reg := prometheus.NewRegistry()
	opts := Options{
		Config: Config{
			Auth: AuthConfig{BearerToken: testToken, BasicUser: "kim", BasicPass: "pw"},
		},
		Settings:   store,
		Locks:      locks,
		Runner:     env.runner,
		Scheduler:  env.scheduler,
		Health:     repo,
		Audit:      audit.New(audit.Config{Writer: &auditBuf}),
		Gatherer:   reg,
		Registerer: reg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}

	gw, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.gw = gw
	env.handler = gw.Handler()
	return env
}

// do sends an authenticated request.
func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
