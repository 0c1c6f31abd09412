package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority is the ordinal priority of a task: 0=low, 1=medium, 2=high.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
)

// ErrEmptyTitle is returned when a task is constructed without a title.
var ErrEmptyTitle = errors.New("task title must not be empty")

// Label renders a priority as LOW/MEDIUM/HIGH. Anything outside the
// known range (a hand-edited database file, for example) is shown as
// MEDIUM rather than rejected.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

// PriorityFromOrdinal converts a stored integer back into a Priority.
// Out-of-range ordinals coerce to PriorityMedium; this is the same
// policy Label applies on display.
func PriorityFromOrdinal(n int) Priority {
	switch Priority(n) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(n)
	default:
		return PriorityMedium
	}
}

// ParsePriority maps a priority name (low/medium/high, case-insensitive)
// to its ordinal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q (expected low, medium or high)", s)
	}
}

// Task is a single to-do item. ID is zero until the store assigns one.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask builds an unpersisted task. Both timestamps are set to now;
// an empty title is rejected.
func NewTask(title string, description *string, dueDate *time.Time, priority Priority, now time.Time) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	return &Task{
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsOverdue reports whether the task's due date is strictly in the past.
// Completed tasks are never overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Completed {
		return false
	}
	return t.DueDate != nil && t.DueDate.Before(now)
}

// DueDateText formats the due date as a calendar date, or "No due date".
func (t *Task) DueDateText() string {
	if t.DueDate == nil {
		return "No due date"
	}
	return t.DueDate.UTC().Format("2006-01-02")
}

// StatusText renders the completion flag for display.
func (t *Task) StatusText() string {
	if t.Completed {
		return "✓ COMPLETED"
	}
	return "○ PENDING"
}

// Summary renders the task as a single plain-text line.
func (t *Task) Summary() string {
	return fmt.Sprintf("[%d] %s %s %s %s", t.ID, t.Title, t.Priority.Label(), t.StatusText(), t.DueDateText())
}

// Detail renders the task as a multi-line plain-text block.
func (t *Task) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task #%d: %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority.Label())
	fmt.Fprintf(&b, "Status: %s\n", t.StatusText())
	fmt.Fprintf(&b, "Due: %s\n", t.DueDateText())
	if t.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *t.Description)
	}
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Updated: %s", t.UpdatedAt.UTC().Format("2006-01-02 15:04"))
	return b.String()
}
