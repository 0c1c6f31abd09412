package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/taskline/pkg/models"
)

var (
	lowStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	mediumStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	highStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Renderer turns tasks into terminal output. Color is optional so the
// data model stays presentation-free and output stays pipe-friendly.
type Renderer struct {
	color bool
	now   func() time.Time
}

func NewRenderer(color bool, now func() time.Time) *Renderer {
	return &Renderer{color: color, now: now}
}

func (r *Renderer) priorityText(t *models.Task) string {
	label := t.Priority.Label()
	if !r.color {
		return label
	}
	switch models.PriorityFromOrdinal(int(t.Priority)) {
	case models.PriorityLow:
		return lowStyle.Render(label)
	case models.PriorityHigh:
		return highStyle.Render(label)
	default:
		return mediumStyle.Render(label)
	}
}

func (r *Renderer) statusText(t *models.Task) string {
	s := t.StatusText()
	if r.color && t.Completed {
		return completedStyle.Render(s)
	}
	return s
}

func (r *Renderer) dueText(t *models.Task) string {
	s := t.DueDateText()
	if r.color && t.IsOverdue(r.now()) {
		return overdueStyle.Render(s)
	}
	return s
}

// Summary renders a task as a single line for list output.
func (r *Renderer) Summary(t *models.Task) string {
	return fmt.Sprintf("[%d] %s %s %s %s", t.ID, t.Title, r.priorityText(t), r.statusText(t), r.dueText(t))
}

// Detail renders a task as a multi-line block for show output.
func (r *Renderer) Detail(t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task #%d: %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "Priority: %s\n", r.priorityText(t))
	fmt.Fprintf(&b, "Status: %s\n", r.statusText(t))
	fmt.Fprintf(&b, "Due: %s\n", r.dueText(t))
	if t.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *t.Description)
	}
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Updated: %s", t.UpdatedAt.UTC().Format("2006-01-02 15:04"))
	return b.String()
}

// Rule returns the horizontal separator used around list output.
func Rule() string {
	return strings.Repeat("─", 80)
}
