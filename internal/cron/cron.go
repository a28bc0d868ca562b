// Package cron triggers the academy jobs on the schedules stored in the
// settings record and keeps those schedules in sync as settings change.
package cron

import (
	"context"

	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/settings"
)

// Runner executes one job run.
type Runner interface {
	Run(ctx context.Context, req jobs.Request) jobs.Result
}

// SettingsReader supplies the schedules.
type SettingsReader interface {
	Get(ctx context.Context) (settings.CronSettings, error)
}

// Spec returns the cron spec for job, prefixed with the timezone so each
// entry fires in the academy's local time.
func Spec(s settings.CronSettings, job jobs.Type) string {
	expr := s.AutoLeaveCron
	if job == jobs.DailyReport {
		expr = s.AutoReportCron
	}
	return "CRON_TZ=" + s.Timezone + " " + expr
}
