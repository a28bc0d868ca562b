package settings

import (
	"strings"
	"time"
)

// Patch is a partial update. Nil fields are left unchanged; LastRunKeys is
// merged key by key.
type Patch struct {
	AutoLeaveEnabled    *bool             `json:"autoLeaveEnabled,omitempty"`
	AutoLeaveCron       *string           `json:"autoLeaveCron,omitempty"`
	AutoReportEnabled   *bool             `json:"autoReportEnabled,omitempty"`
	AutoReportCron      *string           `json:"autoReportCron,omitempty"`
	DryRun              *bool             `json:"dryRun,omitempty"`
	Timezone            *string           `json:"timezone,omitempty"`
	RateLimitPerRun     *int              `json:"rateLimitPerRun,omitempty"`
	LastAutoLeaveRunAt  *time.Time        `json:"lastAutoLeaveRunAt,omitempty"`
	LastAutoReportRunAt *time.Time        `json:"lastAutoReportRunAt,omitempty"`
	LastRunKeys         map[string]string `json:"lastRunKeys,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.AutoLeaveEnabled == nil && p.AutoLeaveCron == nil &&
		p.AutoReportEnabled == nil && p.AutoReportCron == nil &&
		p.DryRun == nil && p.Timezone == nil && p.RateLimitPerRun == nil &&
		p.LastAutoLeaveRunAt == nil && p.LastAutoReportRunAt == nil &&
		len(p.LastRunKeys) == 0
}

// Apply merges the patch onto s. A non-positive rate limit falls back to
// DefaultRateLimit.
func (p Patch) Apply(s *CronSettings) {
	if p.AutoLeaveEnabled != nil {
		s.AutoLeaveEnabled = *p.AutoLeaveEnabled
	}
	if p.AutoLeaveCron != nil {
		s.AutoLeaveCron = strings.TrimSpace(*p.AutoLeaveCron)
	}
	if p.AutoReportEnabled != nil {
		s.AutoReportEnabled = *p.AutoReportEnabled
	}
	if p.AutoReportCron != nil {
		s.AutoReportCron = strings.TrimSpace(*p.AutoReportCron)
	}
	if p.DryRun != nil {
		s.DryRun = *p.DryRun
	}
	if p.Timezone != nil {
		s.Timezone = strings.TrimSpace(*p.Timezone)
	}
	if p.RateLimitPerRun != nil {
		s.RateLimitPerRun = *p.RateLimitPerRun
		if s.RateLimitPerRun <= 0 {
			s.RateLimitPerRun = DefaultRateLimit
		}
	}
	if p.LastAutoLeaveRunAt != nil {
		s.LastAutoLeaveRunAt = cloneTime(p.LastAutoLeaveRunAt)
	}
	if p.LastAutoReportRunAt != nil {
		s.LastAutoReportRunAt = cloneTime(p.LastAutoReportRunAt)
	}
	if len(p.LastRunKeys) > 0 {
		if s.LastRunKeys == nil {
			s.LastRunKeys = make(map[string]string, len(p.LastRunKeys))
		}
		for k, v := range p.LastRunKeys {
			s.LastRunKeys[k] = v
		}
	}
}

// Fields names the record fields the patch sets, in declaration order.
func (p Patch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.AutoLeaveEnabled != nil, "autoLeaveEnabled")
	add(p.AutoLeaveCron != nil, "autoLeaveCron")
	add(p.AutoReportEnabled != nil, "autoReportEnabled")
	add(p.AutoReportCron != nil, "autoReportCron")
	add(p.DryRun != nil, "dryRun")
	add(p.Timezone != nil, "timezone")
	add(p.RateLimitPerRun != nil, "rateLimitPerRun")
	add(p.LastAutoLeaveRunAt != nil, "lastAutoLeaveRunAt")
	add(p.LastAutoReportRunAt != nil, "lastAutoReportRunAt")
	add(len(p.LastRunKeys) > 0, "lastRunKeys")
	return out
}
