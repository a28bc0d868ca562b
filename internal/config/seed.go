package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"

	"github.com/academyops/academyd/internal/settings"
)

// seedEnv holds the environment variables that seed the settings record
// the first time it is read.
type seedEnv struct {
	AutoLeaveEnabled  bool   `env:"AUTO_LEAVE_ENABLED" envDefault:"false"`
	AutoLeaveCron     string `env:"AUTO_LEAVE_CRON" envDefault:"0 23 * * *"`
	AutoReportEnabled bool   `env:"AUTO_REPORT_ENABLED" envDefault:"false"`
	AutoReportCron    string `env:"AUTO_REPORT_CRON" envDefault:"0 22 * * *"`
	DryRun            bool   `env:"CRON_DRY_RUN" envDefault:"true"`
	Timezone          string `env:"CRON_TIMEZONE" envDefault:"Asia/Seoul"`
	RateLimit         int    `env:"CRON_RATE_LIMIT" envDefault:"500"`
}

// LoadSeed reads the seed variables. dotenv files, when given, are loaded
// first; variables already in the environment win. Missing files are
// skipped.
func LoadSeed(dotenv ...string) (settings.Seed, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return settings.Seed{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	var e seedEnv
	if err := env.Parse(&e); err != nil {
		return settings.Seed{}, fmt.Errorf("config: parse seed environment: %w", err)
	}
	return settings.Seed{
		AutoLeaveEnabled:  e.AutoLeaveEnabled,
		AutoLeaveCron:     e.AutoLeaveCron,
		AutoReportEnabled: e.AutoReportEnabled,
		AutoReportCron:    e.AutoReportCron,
		DryRun:            e.DryRun,
		Timezone:          e.Timezone,
		RateLimitPerRun:   e.RateLimit,
	}, nil
}
