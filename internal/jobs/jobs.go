// Package jobs runs the academy's scheduled jobs: the enabled check,
// once-per-day run keys, the shared lease, and dry-run previews around
// the Service that does the actual work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Type names a scheduled job. The value is also the key in the settings
// record's lastRunKeys map.
type Type string

// Known jobs.
const (
	AutoLeave   Type = "autoLeave"
	DailyReport Type = "dailyReport"
)

// Types lists every job in scheduling order.
var Types = []Type{AutoLeave, DailyReport}

// ErrUnknownJob is returned by ParseType for names that are not a Type.
var ErrUnknownJob = errors.New("jobs: unknown job")

// ParseType returns the Type named s. Matching is case-sensitive.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownJob, s)
}

func (t Type) String() string { return string(t) }

// RunKey identifies one logical run: the calendar day of t in t's own
// location, then "@", then the job name.
func RunKey(t time.Time, job Type) string {
	return t.Format("2006-01-02") + "@" + string(job)
}

// Item is one row of a preview or a performed-work summary.
type Item struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"studentId"`
	Student   string `json:"student,omitempty"`
	Target    string `json:"target,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// Options are passed to every Service hook.
type Options struct {
	// Limit caps how many items the hook may return or process.
	Limit int

	// Now is the run's effective time in the configured timezone. Hooks
	// use its calendar day as the day being processed.
	Now time.Time
}

// Preview lists candidates without side effects. Count is the total
// number of candidates, which may exceed len(List).
type Preview struct {
	List  []Item
	Count int
}

// Performed reports the work a perform hook did.
type Performed struct {
	Processed int
	Preview   []Item
}

// Service does the domain work behind each job. Preview hooks must not
// mutate anything. Perform hooks must honor Options.Limit.
type Service interface {
	PreviewAutoLeave(ctx context.Context, opts Options) (Preview, error)
	PerformAutoLeave(ctx context.Context, opts Options) (Performed, error)
	PreviewDailyReport(ctx context.Context, opts Options) (Preview, error)
	PerformDailyReport(ctx context.Context, opts Options) (Performed, error)
}
