package settings

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeRepo struct {
	mu      sync.Mutex
	rec     *CronSettings
	loads   int
	saves   int
	saveErr error
}

func (r *fakeRepo) Load(context.Context) (CronSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.rec == nil {
		return CronSettings{}, ErrNotFound
	}
	return r.rec.Clone(), nil
}

func (r *fakeRepo) Save(_ context.Context, s CronSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	cp := s.Clone()
	r.rec = &cp
	return nil
}

func (r *fakeRepo) Create(_ context.Context, s CronSettings) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		return false, nil
	}
	cp := s.Clone()
	r.rec = &cp
	return true, nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }

func (r *fakeRepo) snapshot(t *testing.T) []byte {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := json.Marshal(r.rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, repo *fakeRepo, clock *fakeClock) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{Repository: repo, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func TestNewStore_RequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(StoreConfig{}); err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestStore_SeedIfEmptyIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})

	seed := DefaultSeed()
	seed.AutoLeaveEnabled = true
	created, err := s.SeedIfEmpty(ctx, seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("first SeedIfEmpty() = false, want true")
	}
	before := repo.snapshot(t)

	other := DefaultSeed()
	other.Timezone = "UTC"
	created, err = s.SeedIfEmpty(ctx, other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second SeedIfEmpty() = true, want false")
	}
	if after := repo.snapshot(t); string(after) != string(before) {
		t.Errorf("record changed by second seed:\nbefore %s\nafter  %s", before, after)
	}
}

func TestStore_SeedIfEmptyRejectsInvalidCron(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})

	seed := DefaultSeed()
	seed.AutoReportCron = "every day"
	_, err := s.SeedIfEmpty(context.Background(), seed)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Field != "autoReportCron" {
		t.Errorf("field = %q, want %q", verr.Field, "autoReportCron")
	}
	if repo.rec != nil {
		t.Error("invalid seed was persisted")
	}
}

func TestStore_GetSeedsLazily(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})

	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AutoLeaveCron != DefaultAutoLeaveCron {
		t.Errorf("autoLeaveCron = %q, want %q", got.AutoLeaveCron, DefaultAutoLeaveCron)
	}
	if !got.DryRun {
		t.Error("dryRun = false, want true for default seed")
	}
	if repo.rec == nil {
		t.Error("record was not persisted on first read")
	}
}

func TestStore_GetUsesCacheWithinTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{}
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, repo, clock)

	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loads := repo.loads

	clock.Advance(10 * time.Second)
	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loads != loads {
		t.Errorf("loads = %d, want %d (cached)", repo.loads, loads)
	}

	clock.Advance(DefaultCacheTTL)
	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loads != loads+1 {
		t.Errorf("loads = %d, want %d after expiry", repo.loads, loads+1)
	}
}

func TestStore_UpdateValidatesCron(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})

	if _, err := s.Update(ctx, Patch{AutoLeaveCron: strPtr("30 22 * * *")}, "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.Update(ctx, Patch{AutoLeaveCron: strPtr("not-a-cron")}, "admin")
	if !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("error = %v, want ErrInvalidCron", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Value != "not-a-cron" {
		t.Errorf("validation error = %v, want value %q", err, "not-a-cron")
	}

	got, err := s.GetFresh(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AutoLeaveCron != "30 22 * * *" {
		t.Errorf("autoLeaveCron = %q, want unchanged %q", got.AutoLeaveCron, "30 22 * * *")
	}

	if _, err := s.Update(ctx, Patch{AutoLeaveCron: strPtr("0 23 * * *")}, "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = s.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AutoLeaveCron != "0 23 * * *" {
		t.Errorf("autoLeaveCron = %q, want %q", got.AutoLeaveCron, "0 23 * * *")
	}
}

func TestStore_UpdateRejectsUnknownTimezone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, &fakeRepo{}, &fakeClock{t: time.Now()})
	_, err := s.Update(context.Background(), Patch{Timezone: strPtr("Mars/Olympus")}, "admin")
	if !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("error = %v, want ErrInvalidTimezone", err)
	}
}

func TestStore_UpdateStampsAndMerges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)}
	s := newTestStore(t, &fakeRepo{}, clock)

	_, err := s.Update(ctx, Patch{LastRunKeys: map[string]string{"autoLeave": "2024-03-04@autoLeave"}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Update(ctx, Patch{
		LastRunKeys:     map[string]string{"dailyReport": "2024-03-05@dailyReport"},
		RateLimitPerRun: intPtr(0),
		DryRun:          boolPtr(false),
	}, "ops@academy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"autoLeave":   "2024-03-04@autoLeave",
		"dailyReport": "2024-03-05@dailyReport",
	}
	if !reflect.DeepEqual(got.LastRunKeys, want) {
		t.Errorf("lastRunKeys = %v, want %v", got.LastRunKeys, want)
	}
	if got.RateLimitPerRun != DefaultRateLimit {
		t.Errorf("rateLimitPerRun = %d, want %d", got.RateLimitPerRun, DefaultRateLimit)
	}
	if got.DryRun {
		t.Error("dryRun = true, want false")
	}
	if got.UpdatedBy != "ops@academy" {
		t.Errorf("updatedBy = %q, want %q", got.UpdatedBy, "ops@academy")
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updatedAt = %v, want %v", got.UpdatedAt, clock.Now())
	}
}

func TestStore_SaveFailureKeepsCacheConsistent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})
	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.saveErr = errors.New("disk full")
	if _, err := s.Update(ctx, Patch{DryRun: boolPtr(false)}, "admin"); err == nil {
		t.Fatal("expected save error")
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.DryRun {
		t.Error("failed update leaked into reads")
	}
}

func TestStore_SetLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, &fakeRepo{}, clock)

	until := clock.Now().Add(5 * time.Minute)
	got, err := s.SetLock(ctx, &until, "node-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Locked(clock.Now()) || got.LockOwner != "node-a" {
		t.Fatalf("lock = %v/%q, want held by node-a", got.LockUntil, got.LockOwner)
	}

	got, err = s.SetLock(ctx, nil, "ignored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LockUntil != nil || got.LockOwner != "" {
		t.Errorf("lock = %v/%q, want cleared", got.LockUntil, got.LockOwner)
	}
}

func TestStore_ReadRepairsInvalidStoredValues(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{rec: &CronSettings{
		AutoLeaveCron:  "garbage",
		AutoReportCron: "0 21 * * *",
		Timezone:       "Nowhere/Town",
	}}
	s := newTestStore(t, repo, &fakeClock{t: time.Now()})

	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AutoLeaveCron != DefaultAutoLeaveCron {
		t.Errorf("autoLeaveCron = %q, want %q", got.AutoLeaveCron, DefaultAutoLeaveCron)
	}
	if got.AutoReportCron != "0 21 * * *" {
		t.Errorf("autoReportCron = %q, want stored value kept", got.AutoReportCron)
	}
	if got.Timezone != DefaultTimezone {
		t.Errorf("timezone = %q, want %q", got.Timezone, DefaultTimezone)
	}
	if got.RateLimitPerRun != DefaultRateLimit {
		t.Errorf("rateLimitPerRun = %d, want %d", got.RateLimitPerRun, DefaultRateLimit)
	}
}

func TestStore_ModifyConcurrentWritersKeepAllUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, &fakeRepo{}, &fakeClock{t: time.Now()})

	jobs := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := s.Update(ctx, Patch{LastRunKeys: map[string]string{name: "2024-01-15@" + name}}, "")
			if err != nil {
				t.Errorf("Update(%s) error: %v", name, err)
			}
		}(j)
	}
	wg.Wait()

	got, err := s.GetFresh(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.LastRunKeys) != len(jobs) {
		t.Errorf("lastRunKeys has %d entries, want %d: %v", len(got.LastRunKeys), len(jobs), got.LastRunKeys)
	}
}

func TestCronSettings_CloneIsDeep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	orig := CronSettings{LockUntil: &now, LastRunKeys: map[string]string{"x": "y"}}
	cp := orig.Clone()
	cp.LastRunKeys["x"] = "z"
	*cp.LockUntil = now.Add(time.Hour)

	if orig.LastRunKeys["x"] != "y" {
		t.Error("clone shares lastRunKeys map")
	}
	if !orig.LockUntil.Equal(now) {
		t.Error("clone shares lockUntil pointer")
	}
}
