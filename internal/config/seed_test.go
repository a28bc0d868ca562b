package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/academyops/academyd/internal/settings"
)

func TestLoadSeed_Defaults(t *testing.T) {
	for _, k := range []string{
		"AUTO_LEAVE_ENABLED", "AUTO_LEAVE_CRON", "AUTO_REPORT_ENABLED",
		"AUTO_REPORT_CRON", "CRON_DRY_RUN", "CRON_TIMEZONE", "CRON_RATE_LIMIT",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	seed, err := LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	want := settings.DefaultSeed()
	if seed != want {
		t.Errorf("seed = %+v, want %+v", seed, want)
	}
}

func TestLoadSeed_FromEnvironment(t *testing.T) {
	t.Setenv("AUTO_LEAVE_ENABLED", "true")
	t.Setenv("AUTO_LEAVE_CRON", "30 22 * * 1-5")
	t.Setenv("AUTO_REPORT_ENABLED", "true")
	t.Setenv("AUTO_REPORT_CRON", "0 21 * * *")
	t.Setenv("CRON_DRY_RUN", "false")
	t.Setenv("CRON_TIMEZONE", "UTC")
	t.Setenv("CRON_RATE_LIMIT", "50")

	seed, err := LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	want := settings.Seed{
		AutoLeaveEnabled:  true,
		AutoLeaveCron:     "30 22 * * 1-5",
		AutoReportEnabled: true,
		AutoReportCron:    "0 21 * * *",
		DryRun:            false,
		Timezone:          "UTC",
		RateLimitPerRun:   50,
	}
	if seed != want {
		t.Errorf("seed = %+v, want %+v", seed, want)
	}
}

func TestLoadSeed_InvalidBool(t *testing.T) {
	t.Setenv("AUTO_LEAVE_ENABLED", "maybe")

	if _, err := LoadSeed(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadSeed_MissingDotenvSkipped(t *testing.T) {
	t.Setenv("CRON_TIMEZONE", "UTC")

	seed, err := LoadSeed(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if seed.Timezone != "UTC" {
		t.Errorf("timezone = %q", seed.Timezone)
	}
}
