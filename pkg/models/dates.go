package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidDateFormat is returned for due-date strings that are
	// neither a calendar date nor an RFC3339 timestamp.
	ErrInvalidDateFormat = errors.New("invalid date format (expected YYYY-MM-DD or RFC3339)")

	// ErrDueDateNotFuture is returned on the write path when a due date
	// does not lie strictly after the current instant.
	ErrDueDateNotFuture = errors.New("due date must be in the future")
)

// ParseDueDate parses a due-date string. A bare calendar date
// (YYYY-MM-DD) is interpreted as midnight UTC; otherwise the string
// must be a full RFC3339 timestamp, which is normalized to UTC.
func ParseDueDate(s string) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}

// ValidateFutureDueDate enforces the write-path rule that a due date
// must be strictly after now. Reading back a task whose due date has
// since passed is fine; only create and update go through here.
func ValidateFutureDueDate(due, now time.Time) error {
	if !due.After(now) {
		return fmt.Errorf("%w: %s", ErrDueDateNotFuture, due.UTC().Format(time.RFC3339))
	}
	return nil
}
