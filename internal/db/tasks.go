package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ldi/taskline/pkg/models"
)

// ErrTaskNotFound is returned by mutations that target an id with no
// backing row. Callers distinguish it from storage failures with
// errors.Is.
var ErrTaskNotFound = errors.New("task not found")

// timeLayout is RFC3339 with a fixed-width fraction so that stored
// timestamps sort chronologically under SQLite's text ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func encodeDueDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := encodeTime(*t)
	return &s
}

// CreateTask inserts a new task and assigns its id. Both timestamps are
// stamped from the store clock regardless of what the caller set.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if t.Title == "" {
		return models.ErrEmptyTitle
	}

	now := db.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO tasks (title, description, due_date, priority, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.ExecContext(ctx, query,
		t.Title, t.Description, encodeDueDate(t.DueDate), int(t.Priority), t.Completed,
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted task id: %w", err)
	}
	t.ID = id

	db.triggerChange(ctx)
	return nil
}

// GetTask retrieves a task by its id. Absence is (nil, nil), not an
// error; callers decide whether that is fatal.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `
		SELECT id, title, description, due_date, priority, completed, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`
	t, err := scanTask(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// TaskExists reports whether a task with the given id is stored.
func (db *DB) TaskExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return count > 0, nil
}

// ListTasks returns tasks ordered by priority descending, then creation
// time ascending (oldest first within equal priority). Completed tasks
// are excluded unless includeCompleted is set; priority filters to an
// exact ordinal. No matches yields an empty result, not an error.
func (db *DB) ListTasks(ctx context.Context, includeCompleted bool, priority *models.Priority) ([]*models.Task, error) {
	query := `
		SELECT id, title, description, due_date, priority, completed, created_at, updated_at
		FROM tasks
		WHERE 1=1
	`
	args := []interface{}{}

	if !includeCompleted {
		query += " AND completed = 0"
	}

	if priority != nil {
		query += " AND priority = ?"
		args = append(args, int(*priority))
	}

	query += " ORDER BY priority DESC, created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

// UpdateTask overwrites the mutable fields of the row at t.ID.
// updated_at is stamped from the store clock, never taken from the
// caller. A missing id is ErrTaskNotFound; no row is ever created.
func (db *DB) UpdateTask(ctx context.Context, t *models.Task) error {
	query := `
		UPDATE tasks
		SET title = ?, description = ?, due_date = ?, priority = ?, completed = ?, updated_at = ?
		WHERE id = ?
		RETURNING updated_at
	`
	var updatedAt string
	err := db.QueryRowContext(ctx, query,
		t.Title, t.Description, encodeDueDate(t.DueDate), int(t.Priority), t.Completed,
		encodeTime(db.Now()), t.ID,
	).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	if t.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// CompleteTask marks a task completed and refreshes updated_at. All
// other fields are left untouched.
func (db *DB) CompleteTask(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET completed = 1, updated_at = ? WHERE id = ?`,
		encodeTime(db.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteTask permanently removes a task. Deleting a missing id is an
// error, not a no-op: the stricter contract keeps delete consistent
// with update and complete.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}

	db.triggerChange(ctx)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var (
		priority           int
		completed          int
		dueDate            sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &dueDate, &priority, &completed, &createdAt, &updated); err != nil {
		return nil, err
	}

	// Raw ordinal is kept as stored; Priority.Label defends against
	// out-of-range values on display.
	t.Priority = models.Priority(priority)
	t.Completed = completed != 0

	if dueDate.Valid {
		d, err := decodeTime(dueDate.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = &d
	}

	var err error
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, err
	}

	return t, nil
}
