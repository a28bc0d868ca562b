// Package settings owns the cron settings record: env-seeded defaults,
// cron and timezone validation, and the cached read-modify-write Store
// that every settings update and job run goes through.
package settings

import (
	"maps"
	"time"

	// DefaultTimezone must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// Defaults applied when neither the stored record nor the seed provides a value.
const (
	DefaultAutoLeaveCron  = "0 23 * * *"
	DefaultAutoReportCron = "0 22 * * *"
	DefaultTimezone       = "Asia/Seoul"
	DefaultRateLimit      = 500
	DefaultCacheTTL       = 30 * time.Second
)

// RecordID is the fixed identifier of the singleton settings record.
const RecordID = "cron"

// CronSettings is the singleton configuration document for the scheduled jobs.
type CronSettings struct {
	AutoLeaveEnabled  bool   `json:"autoLeaveEnabled" bson:"autoLeaveEnabled"`
	AutoLeaveCron     string `json:"autoLeaveCron" bson:"autoLeaveCron"`
	AutoReportEnabled bool   `json:"autoReportEnabled" bson:"autoReportEnabled"`
	AutoReportCron    string `json:"autoReportCron" bson:"autoReportCron"`

	// DryRun makes jobs preview only; no attendance writes, no messages.
	DryRun bool `json:"dryRun" bson:"dryRun"`

	// Timezone is an IANA zone name used for schedules and run keys.
	Timezone string `json:"timezone" bson:"timezone"`

	// RateLimitPerRun caps how many items a single run may process.
	RateLimitPerRun int `json:"rateLimitPerRun" bson:"rateLimitPerRun"`

	LastAutoLeaveRunAt  *time.Time `json:"lastAutoLeaveRunAt" bson:"lastAutoLeaveRunAt"`
	LastAutoReportRunAt *time.Time `json:"lastAutoReportRunAt" bson:"lastAutoReportRunAt"`

	// LockUntil in the future means a run holds the lease. LockOwner
	// identifies the holder so only it can release.
	LockUntil *time.Time `json:"lockUntil" bson:"lockUntil"`
	LockOwner string     `json:"lockOwner,omitempty" bson:"lockOwner,omitempty"`

	// LastRunKeys maps a job name to the run key of its last recorded run.
	LastRunKeys map[string]string `json:"lastRunKeys" bson:"lastRunKeys"`

	UpdatedBy string     `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers never share the cached map or
// timestamps with the Store.
func (s CronSettings) Clone() CronSettings {
	cp := s
	cp.LastAutoLeaveRunAt = cloneTime(s.LastAutoLeaveRunAt)
	cp.LastAutoReportRunAt = cloneTime(s.LastAutoReportRunAt)
	cp.LockUntil = cloneTime(s.LockUntil)
	cp.UpdatedAt = cloneTime(s.UpdatedAt)
	if s.LastRunKeys != nil {
		cp.LastRunKeys = maps.Clone(s.LastRunKeys)
	}
	return cp
}

// Locked reports whether a lease is still active at now.
func (s CronSettings) Locked(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}

// Location returns the configured timezone, falling back to DefaultTimezone
// and finally UTC if neither can be loaded.
func (s CronSettings) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Timezone); err == nil && s.Timezone != "" {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// withDefaults fills missing fields from the seed, then from the package
// defaults. It never validates.
func (s CronSettings) withDefaults(seed Seed) CronSettings {
	if s.AutoLeaveCron == "" {
		s.AutoLeaveCron = firstNonEmpty(seed.AutoLeaveCron, DefaultAutoLeaveCron)
	}
	if s.AutoReportCron == "" {
		s.AutoReportCron = firstNonEmpty(seed.AutoReportCron, DefaultAutoReportCron)
	}
	if s.Timezone == "" {
		s.Timezone = firstNonEmpty(seed.Timezone, DefaultTimezone)
	}
	if s.RateLimitPerRun <= 0 {
		s.RateLimitPerRun = DefaultRateLimit
	}
	if s.LastRunKeys == nil {
		s.LastRunKeys = make(map[string]string)
	}
	return s
}

// Seed holds the environment-derived values used to create the record the
// first time it is read, and as fallbacks for missing fields.
type Seed struct {
	AutoLeaveEnabled  bool
	AutoLeaveCron     string
	AutoReportEnabled bool
	AutoReportCron    string
	DryRun            bool
	Timezone          string
	RateLimitPerRun   int
}

// DefaultSeed is used when no environment seed is configured. Jobs start
// disabled and in dry-run mode.
func DefaultSeed() Seed {
	return Seed{
		AutoLeaveCron:   DefaultAutoLeaveCron,
		AutoReportCron:  DefaultAutoReportCron,
		DryRun:          true,
		Timezone:        DefaultTimezone,
		RateLimitPerRun: DefaultRateLimit,
	}
}

// Settings converts the seed into a normalized record.
func (s Seed) Settings() CronSettings {
	rec := CronSettings{
		AutoLeaveEnabled:  s.AutoLeaveEnabled,
		AutoLeaveCron:     s.AutoLeaveCron,
		AutoReportEnabled: s.AutoReportEnabled,
		AutoReportCron:    s.AutoReportCron,
		DryRun:            s.DryRun,
		Timezone:          s.Timezone,
		RateLimitPerRun:   s.RateLimitPerRun,
	}
	return rec.withDefaults(Seed{})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
