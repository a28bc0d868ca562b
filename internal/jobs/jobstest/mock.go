// Package jobstest provides test doubles for the jobs package.
package jobstest

import (
	"context"
	"sync"

	"github.com/academyops/academyd/internal/jobs"
)

// MockService is a configurable jobs.Service. Unset funcs return an empty
// result.
type MockService struct {
	PreviewAutoLeaveFunc   func(ctx context.Context, opts jobs.Options) (jobs.Preview, error)
	PerformAutoLeaveFunc   func(ctx context.Context, opts jobs.Options) (jobs.Performed, error)
	PreviewDailyReportFunc func(ctx context.Context, opts jobs.Options) (jobs.Preview, error)
	PerformDailyReportFunc func(ctx context.Context, opts jobs.Options) (jobs.Performed, error)

	mu    sync.Mutex
	calls map[string]int
	last  jobs.Options
}

// Compile-time interface check.
var _ jobs.Service = (*MockService)(nil)

func (m *MockService) record(name string, opts jobs.Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
	m.last = opts
}

// PreviewAutoLeave implements jobs.Service.
func (m *MockService) PreviewAutoLeave(ctx context.Context, opts jobs.Options) (jobs.Preview, error) {
	m.record("PreviewAutoLeave", opts)
	if m.PreviewAutoLeaveFunc != nil {
		return m.PreviewAutoLeaveFunc(ctx, opts)
	}
	return jobs.Preview{}, nil
}

// PerformAutoLeave implements jobs.Service.
func (m *MockService) PerformAutoLeave(ctx context.Context, opts jobs.Options) (jobs.Performed, error) {
	m.record("PerformAutoLeave", opts)
	if m.PerformAutoLeaveFunc != nil {
		return m.PerformAutoLeaveFunc(ctx, opts)
	}
	return jobs.Performed{}, nil
}

// PreviewDailyReport implements jobs.Service.
func (m *MockService) PreviewDailyReport(ctx context.Context, opts jobs.Options) (jobs.Preview, error) {
	m.record("PreviewDailyReport", opts)
	if m.PreviewDailyReportFunc != nil {
		return m.PreviewDailyReportFunc(ctx, opts)
	}
	return jobs.Preview{}, nil
}

// PerformDailyReport implements jobs.Service.
func (m *MockService) PerformDailyReport(ctx context.Context, opts jobs.Options) (jobs.Performed, error) {
	m.record("PerformDailyReport", opts)
	if m.PerformDailyReportFunc != nil {
		return m.PerformDailyReportFunc(ctx, opts)
	}
	return jobs.Performed{}, nil
}

// Calls returns how many times the named hook was called.
func (m *MockService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of hook calls of any kind.
func (m *MockService) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// LastOptions returns the options passed to the most recent hook call.
func (m *MockService) LastOptions() jobs.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
