package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/academyops/academyd/internal/settings"
)

func TestNew_Key(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	if got := New(client, "", nil).Key(); got != "academyd:settings:cron" {
		t.Errorf("key = %q, want %q", got, "academyd:settings:cron")
	}
	if got := New(client, "branch2:", nil).Key(); got != "branch2:settings:cron" {
		t.Errorf("key = %q, want %q", got, "branch2:settings:cron")
	}
}

func TestRepository_DecodeCorruptValue(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	r := New(client, "", slog.New(slog.NewTextHandler(&buf, nil)))

	for _, raw := range []string{"not json", `{"autoLeaveCron":`, `[]`} {
		got := r.decode([]byte(raw))
		if got.AutoLeaveCron != "" || got.Timezone != "" || got.LastRunKeys != nil {
			t.Errorf("decode(%q) = %+v, want empty record", raw, got)
		}
	}
	if !strings.Contains(buf.String(), "stored settings unreadable") {
		t.Errorf("log = %q, want unreadable warning", buf.String())
	}

	got := r.decode([]byte(`{"autoLeaveCron":"5 23 * * *","timezone":"UTC"}`))
	if got.AutoLeaveCron != "5 23 * * *" || got.Timezone != "UTC" {
		t.Errorf("decode(valid) = %+v", got)
	}
}

func TestConnect_Validation(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), Config{}, nil); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := Connect(context.Background(), Config{URL: "http://not-redis"}, nil); err == nil {
		t.Error("expected error for bad scheme")
	}
}

func TestRepository_Live(t *testing.T) {
	url := os.Getenv("ACADEMYD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ACADEMYD_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	r, err := Connect(ctx, Config{URL: url, Prefix: fmt.Sprintf("academyd-test-%d:", time.Now().UnixNano())}, nil)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() {
		_ = r.client.Del(context.Background(), r.key).Err()
		_ = r.Close()
	})

	if _, err := r.Load(ctx); !errors.Is(err, settings.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}

	first := settings.DefaultSeed().Settings()
	created, err := r.Create(ctx, first)
	if err != nil || !created {
		t.Fatalf("first Create() = %v, %v", created, err)
	}
	created, err = r.Create(ctx, first)
	if err != nil || created {
		t.Fatalf("second Create() = %v, %v; want false, nil", created, err)
	}

	first.DryRun = false
	if err := r.Save(ctx, first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.DryRun {
		t.Error("dryRun = true after save")
	}

	if err := r.client.Set(ctx, r.key, "not json", 0).Err(); err != nil {
		t.Fatalf("corrupt key: %v", err)
	}
	if _, err := r.Load(ctx); err != nil {
		t.Fatalf("Load() on corrupt value error: %v", err)
	}
	store, err := settings.NewStore(settings.StoreConfig{Repository: r})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := store.GetFresh(ctx)
	if err != nil {
		t.Fatalf("GetFresh() error: %v", err)
	}
	if rec.AutoLeaveCron != settings.DefaultAutoLeaveCron {
		t.Errorf("autoLeaveCron = %q, want %q", rec.AutoLeaveCron, settings.DefaultAutoLeaveCron)
	}
	cron := "45 22 * * *"
	if _, err := store.Update(ctx, settings.Patch{AutoLeaveCron: &cron}, "admin"); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, err = r.Load(ctx)
	if err != nil || got.AutoLeaveCron != cron {
		t.Errorf("Load() after update = %q, %v; want %q", got.AutoLeaveCron, err, cron)
	}
}
