package jobs

import (
	"fmt"
	"strings"
	"time"
)

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseNow parses an override time. RFC 3339 values keep their offset;
// values without an offset are read as wall time in loc.
func ParseNow(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("jobs: empty time")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("jobs: unrecognized time %q (want RFC 3339 or YYYY-MM-DD[ HH:MM[:SS]])", raw)
}
