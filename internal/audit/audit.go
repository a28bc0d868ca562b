// Package audit records operator-relevant changes (settings edits, forced
// lock releases, job runs) as JSON lines.
package audit

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Event types.
const (
	EventSettingsUpdate    EventType = "settings_update"
	EventLockReleaseForced EventType = "lock_release_forced"
	EventJobRun            EventType = "job_run"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Actor     string            `json:"actor,omitempty"`
	Job       string            `json:"job,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	RunKey    string            `json:"run_key,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Config configures a Logger.
type Config struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent.
	Writer io.Writer

	// OnEvent, if non-nil, is called for every event.
	OnEvent func(Event)

	// Now overrides time.Now. Defaults to time.Now.
	Now func() time.Time
}

// Logger writes audit events as JSONL. A nil *Logger discards everything.
type Logger struct {
	writer  io.Writer
	onEvent func(Event)
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a Logger.
func New(cfg Config) *Logger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Logger{writer: cfg.Writer, onEvent: cfg.OnEvent, now: now}
}

// Log writes event with the current timestamp. The caller's Metadata map
// is copied, never mutated.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	if len(event.Metadata) > 0 {
		event.Metadata = maps.Clone(event.Metadata)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}

// SettingsUpdated records an operator settings change. changed lists the
// patched field names.
func (l *Logger) SettingsUpdated(actor string, changed []string) {
	md := make(map[string]string, len(changed))
	for _, f := range changed {
		md[f] = "changed"
	}
	l.Log(Event{Type: EventSettingsUpdate, Actor: actor, Metadata: md})
}

// LockReleaseForced records an operator clearing the run lease.
func (l *Logger) LockReleaseForced(actor, previousOwner string) {
	l.Log(Event{Type: EventLockReleaseForced, Actor: actor, Detail: previousOwner})
}

// RecordJobRun records a finished job run. It satisfies jobs.AuditRecorder.
func (l *Logger) RecordJobRun(job, outcome, reason, runKey string, force bool, errMsg string) {
	if l == nil {
		return
	}
	md := map[string]string{}
	if reason != "" {
		md["reason"] = reason
	}
	if force {
		md["force"] = "true"
	}
	l.Log(Event{
		Type:     EventJobRun,
		Actor:    "cron:" + job,
		Job:      job,
		Outcome:  outcome,
		RunKey:   runKey,
		Detail:   errMsg,
		Metadata: md,
	})
}
