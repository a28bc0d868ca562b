package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5 fields, 6 fields with leading seconds, and
// descriptors like "@daily".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a stored cron expression. Timezone prefixes are rejected:
// the zone is a separate settings field.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty expression")
	}
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, errors.New("timezone prefix is not allowed, use the timezone setting")
	}
	return cronParser.Parse(expr)
}

// ValidateCron returns a *ValidationError for field when expr does not parse.
func ValidateCron(field, expr string) error {
	if _, err := ParseCron(expr); err != nil {
		return &ValidationError{Field: field, Value: expr, Err: fmt.Errorf("%w: %v", ErrInvalidCron, err)}
	}
	return nil
}

// ValidateTimezone returns a *ValidationError when name is not a loadable zone.
func ValidateTimezone(name string) error {
	if name == "" {
		return &ValidationError{Field: "timezone", Value: name, Err: ErrInvalidTimezone}
	}
	if _, err := time.LoadLocation(name); err != nil {
		return &ValidationError{Field: "timezone", Value: name, Err: fmt.Errorf("%w: %v", ErrInvalidTimezone, err)}
	}
	return nil
}

// Validate checks both cron expressions and the timezone. All problems are
// joined so an operator sees every bad field at once.
func (s CronSettings) Validate() error {
	return errors.Join(
		ValidateCron("autoLeaveCron", s.AutoLeaveCron),
		ValidateCron("autoReportCron", s.AutoReportCron),
		ValidateTimezone(s.Timezone),
	)
}

// repair replaces invalid cron expressions and timezones with fallbacks
// from seed. It returns the fields it had to replace.
func (s CronSettings) repair(seed Seed) (CronSettings, []error) {
	var problems []error
	if err := ValidateCron("autoLeaveCron", s.AutoLeaveCron); err != nil {
		problems = append(problems, err)
		s.AutoLeaveCron = validOr(seed.AutoLeaveCron, DefaultAutoLeaveCron)
	}
	if err := ValidateCron("autoReportCron", s.AutoReportCron); err != nil {
		problems = append(problems, err)
		s.AutoReportCron = validOr(seed.AutoReportCron, DefaultAutoReportCron)
	}
	if err := ValidateTimezone(s.Timezone); err != nil {
		problems = append(problems, err)
		s.Timezone = DefaultTimezone
		if seed.Timezone != "" && ValidateTimezone(seed.Timezone) == nil {
			s.Timezone = seed.Timezone
		}
	}
	return s, problems
}

func validOr(expr, fallback string) string {
	if expr != "" {
		if _, err := ParseCron(expr); err == nil {
			return expr
		}
	}
	return fallback
}
