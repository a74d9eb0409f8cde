// Package validate provides stateless predicate functions for the
// free-text fields collected by the conversation flows.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3])[0-5][0-9]$`)

// Error variables for better error handling and testability
var (
	ErrBadTime      = errors.New("time must be HHMM in 24-hour format")
	ErrBadTimeRange = errors.New("time range must be HHMM-HHMM with start before end")
	ErrBadDate      = errors.New("date must be DDMMYY")
	ErrPastDate     = errors.New("date cannot be in the past")
	ErrNotDigits    = errors.New("input must contain digits only")
	ErrTooShort     = errors.New("input too short")
	ErrTooLong      = errors.New("input too long")
	ErrBadDayCount  = errors.New("day count out of range")
)

// IsValid24hTime reports whether value is a well-formed 4-digit 24-hour time.
func IsValid24hTime(value string) bool {
	return hhmmPattern.MatchString(value)
}

// ParseTimeRange parses "HHMM-HHMM" with both times well formed and start
// strictly before end.
func ParseTimeRange(text string) (start, end string, err error) {
	parts := strings.SplitN(strings.TrimSpace(text), "-", 2)
	if len(parts) != 2 {
		return "", "", ErrBadTimeRange
	}
	start, end = parts[0], parts[1]
	if !IsValid24hTime(start) || !IsValid24hTime(end) {
		return "", "", ErrBadTimeRange
	}
	if start >= end {
		return "", "", ErrBadTimeRange
	}
	return start, end, nil
}

// ParseDDMMYY parses a 6-digit DDMMYY string as a real calendar date in
// loc and rejects dates before today.
func ParseDDMMYY(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if len(value) != 6 || !IsDigits(value) {
		return time.Time{}, ErrBadDate
	}
	d, err := time.ParseInLocation("020106", value, loc)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if d.Before(today) {
		return time.Time{}, ErrPastDate
	}
	return d, nil
}

// IsDigits reports whether value is non-empty and consists only of ASCII digits.
func IsDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WithinLen checks that value is between min and max characters inclusive.
func WithinLen(value string, min, max int) error {
	if len(value) < min {
		return fmt.Errorf("%w: need at least %d characters", ErrTooShort, min)
	}
	if len(value) > max {
		return fmt.Errorf("%w: at most %d characters", ErrTooLong, max)
	}
	return nil
}

// ParseDayCount parses a status duration. Zero is accepted only when
// allowZero is set (the "no status given" outcome); everything else must
// fall in [1, MaxDayCount].
func ParseDayCount(value string, allowZero bool) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: not a number", ErrBadDayCount)
	}
	if n == 0 && allowZero {
		return 0, nil
	}
	if n < 1 || n > models.MaxDayCount {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrBadDayCount, models.MaxDayCount)
	}
	return n, nil
}
