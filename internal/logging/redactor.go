package logging

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces redacted secrets.
const Placeholder = "***REDACTED***"

// phonePattern matches Korean mobile numbers with or without separators.
var phonePattern = regexp.MustCompile(`\b(01[016789])[- .]?(\d{3,4})[- .]?(\d{4})\b`)

// Redactor masks phone numbers and replaces known secret values.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor with the default token patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]{8,}`),
		regexp.MustCompile(`(?i)(api[_-]?key|token|password)=([^&\s]+)`),
	}}
}

// AddLiteral redacts secret wherever it appears. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	r.literals = append(r.literals, secret)
	r.mu.Unlock()
}

// Redact masks phone numbers to their last four digits and replaces
// secrets with Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	s = phonePattern.ReplaceAllString(s, "$1-****-$3")
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	return s
}
