package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Repository when no record exists yet.
	ErrNotFound = errors.New("settings: record not found")

	// ErrInvalidCron marks a cron expression the parser rejects.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidTimezone marks a timezone name that cannot be loaded.
	ErrInvalidTimezone = errors.New("unknown timezone")
)

// ValidationError names the field that failed validation and the rejected value.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settings: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
