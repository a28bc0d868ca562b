package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "academyd.yaml", "version: \"1\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.CacheTTL != 30*time.Second {
		t.Errorf("cache_ttl = %s, want 30s", cfg.Store.CacheTTL)
	}
	if cfg.Jobs.LockLease != 5*time.Minute {
		t.Errorf("lock_lease = %s, want 5m", cfg.Jobs.LockLease)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should default to enabled")
	}
	if cfg.Academy.Notifier.Kind != NotifierLog {
		t.Errorf("notifier = %q, want log", cfg.Academy.Notifier.Kind)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_ParsesSections(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "academyd.yaml", `
version: "1"
store:
  backend: redis
  redis:
    url: redis://localhost:6379/0
  cache_ttl: 10s
jobs:
  lock_lease: 2m
  owner: worker-1
scheduler:
  enabled: false
academy:
  academy_name: 수학학원
  notifier:
    kind: http
    endpoint: https://notify.example.com/send
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", cfg.Store.Redis.URL)
	}
	if cfg.Store.CacheTTL != 10*time.Second {
		t.Errorf("cache_ttl = %s", cfg.Store.CacheTTL)
	}
	if cfg.Jobs.Owner != "worker-1" || cfg.Jobs.LockLease != 2*time.Minute {
		t.Errorf("jobs = %+v", cfg.Jobs)
	}
	if cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should be disabled")
	}
	if cfg.Academy.AcademyName != "수학학원" {
		t.Errorf("academy_name = %q", cfg.Academy.AcademyName)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bad.yaml", "version: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ACADEMYD_TEST_URI", "mongodb://db:27017")

	out, err := expandEnv([]byte("uri: ${ACADEMYD_TEST_URI}\nname: ${ACADEMYD_TEST_UNSET:-fallback}\n"))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	want := "uri: mongodb://db:27017\nname: fallback\n"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestExpandEnv_Unresolved(t *testing.T) {
	t.Parallel()

	_, err := expandEnv([]byte("a: ${ACADEMYD_TEST_MISSING_A}\nb: ${ACADEMYD_TEST_MISSING_B}\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"ACADEMYD_TEST_MISSING_A", "ACADEMYD_TEST_MISSING_B"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestValidate_Problems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version"},
		{"unsupported version", func(c *Config) { c.Version = "99" }, "unsupported version"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"mongo without uri", func(c *Config) { c.Store.Backend = BackendMongo }, "store.mongo.uri"},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis }, "store.redis.url"},
		{"negative ttl", func(c *Config) { c.Store.CacheTTL = -time.Second }, "cache_ttl"},
		{"negative lease", func(c *Config) { c.Jobs.LockLease = -time.Second }, "lock_lease"},
		{"http notifier without endpoint", func(c *Config) { c.Academy.Notifier.Kind = NotifierHTTP }, "notifier.endpoint"},
		{"unknown notifier", func(c *Config) { c.Academy.Notifier.Kind = "sms" }, "notifier.kind"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log"},
		{"bad sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "sample_ratio"},
		{"basic user without pass", func(c *Config) { c.Gateway.Auth.BasicUser = "admin" }, "basic_pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Version = "2"
	cfg.Store.Backend = "etcd"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "version") || !strings.Contains(err.Error(), "backend") {
		t.Errorf("both problems should be reported: %v", err)
	}
}

func TestSecrets(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Academy.Notifier.APIKey = "k-123"
	cfg.Gateway.Auth.BearerToken = "tok"
	secrets := cfg.Secrets()
	joined := strings.Join(secrets, ",")
	if !strings.Contains(joined, "k-123") || !strings.Contains(joined, "tok") {
		t.Errorf("Secrets() = %v", secrets)
	}
}
