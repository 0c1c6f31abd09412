package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ldi/taskline/pkg/models"
)

// testClock returns a manually advanceable clock starting at a fixed
// instant so timestamps are deterministic.
func testClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	now := start
	clock := func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }
	return clock, advance
}

func openTestDB(t *testing.T) (*DB, func(d time.Duration)) {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	clock, advance := testClock(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	db.Now = clock
	return db, advance
}

func TestTaskCRUD(t *testing.T) {
	db, advance := openTestDB(t)
	ctx := context.Background()

	// 1. Create
	desc := "write the report"
	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	task, err := models.NewTask("Report", &desc, &due, models.PriorityHigh, db.Now())
	if err != nil {
		t.Fatalf("Failed to build task: %v", err)
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if task.ID == 0 {
		t.Errorf("Expected an assigned id, got 0")
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Errorf("Expected CreatedAt and UpdatedAt to be set")
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Errorf("Expected CreatedAt == UpdatedAt on create")
	}

	// 2. Get
	fetched, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched == nil {
		t.Fatalf("Task not found")
	}
	if fetched.Title != "Report" {
		t.Errorf("Expected title Report, got %s", fetched.Title)
	}
	if fetched.Description == nil || *fetched.Description != desc {
		t.Errorf("Expected description %q, got %v", desc, fetched.Description)
	}
	if fetched.Priority != models.PriorityHigh {
		t.Errorf("Expected priority high, got %d", fetched.Priority)
	}
	if fetched.Completed {
		t.Errorf("Expected new task to be incomplete")
	}
	// Round-trip: a 2030-01-01 due date must read back as 2030-01-01
	if got := fetched.DueDateText(); got != "2030-01-01" {
		t.Errorf("Expected due date 2030-01-01, got %s", got)
	}
	if !fetched.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", task.CreatedAt, fetched.CreatedAt)
	}

	// 3. Update
	advance(time.Minute)
	fetched.Title = "Quarterly report"
	fetched.Priority = models.PriorityLow
	if err := db.UpdateTask(ctx, fetched); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}

	updated, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if updated.Title != "Quarterly report" {
		t.Errorf("Expected title Quarterly report, got %s", updated.Title)
	}
	if updated.Priority != models.PriorityLow {
		t.Errorf("Expected priority low, got %d", updated.Priority)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("Expected updated_at to advance past created_at")
	}

	// 4. Complete refreshes updated_at and leaves other fields alone
	advance(time.Minute)
	if err := db.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	completed, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if !completed.Completed {
		t.Errorf("Expected task to be completed")
	}
	if completed.Title != updated.Title {
		t.Errorf("Complete must not change the title")
	}
	if completed.Description == nil || *completed.Description != desc {
		t.Errorf("Complete must not change the description")
	}
	if completed.Priority != updated.Priority {
		t.Errorf("Complete must not change the priority")
	}
	if completed.DueDate == nil || !completed.DueDate.Equal(due) {
		t.Errorf("Complete must not change the due date")
	}
	if !completed.UpdatedAt.After(updated.UpdatedAt) {
		t.Errorf("Expected updated_at to strictly increase on complete")
	}

	// 5. Delete, then absence
	if err := db.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}

	gone, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task after deletion: %v", err)
	}
	if gone != nil {
		t.Errorf("Expected task to be deleted, but it still exists")
	}

	exists, err := db.TaskExists(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if exists {
		t.Errorf("Expected TaskExists to be false after delete")
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	db, _ := openTestDB(t)

	task := &models.Task{}
	err := db.CreateTask(context.Background(), task)
	if !errors.Is(err, models.ErrEmptyTitle) {
		t.Errorf("Expected ErrEmptyTitle, got %v", err)
	}
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		task, err := models.NewTask("task", nil, nil, models.PriorityMedium, db.Now())
		if err != nil {
			t.Fatalf("Failed to build task: %v", err)
		}
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
		if seen[task.ID] {
			t.Errorf("Duplicate id assigned: %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestListTasksOrdering(t *testing.T) {
	db, advance := openTestDB(t)
	ctx := context.Background()

	create := func(title string, p models.Priority) *models.Task {
		t.Helper()
		task, err := models.NewTask(title, nil, nil, p, db.Now())
		if err != nil {
			t.Fatalf("Failed to build task %s: %v", title, err)
		}
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task %s: %v", title, err)
		}
		advance(time.Second)
		return task
	}

	// A (high) created before B (low); two mediums to check the
	// oldest-first tie break.
	a := create("A", models.PriorityHigh)
	b := create("B", models.PriorityLow)
	m1 := create("M1", models.PriorityMedium)
	m2 := create("M2", models.PriorityMedium)

	tasks, err := db.ListTasks(ctx, true, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("Expected 4 tasks, got %d", len(tasks))
	}

	wantOrder := []int64{a.ID, m1.ID, m2.ID, b.ID}
	for i, want := range wantOrder {
		if tasks[i].ID != want {
			t.Errorf("Position %d: expected id %d, got %d (%s)", i, want, tasks[i].ID, tasks[i].Title)
		}
	}

	// Priority descending, then created_at ascending, for every pair
	for i := 0; i < len(tasks)-1; i++ {
		cur, next := tasks[i], tasks[i+1]
		if cur.Priority < next.Priority {
			t.Errorf("Priority ordering violated at %d: %d < %d", i, cur.Priority, next.Priority)
		}
		if cur.Priority == next.Priority && cur.CreatedAt.After(next.CreatedAt) {
			t.Errorf("Creation-time tie break violated at %d", i)
		}
	}
}

func TestListTasksFilters(t *testing.T) {
	db, advance := openTestDB(t)
	ctx := context.Background()

	first, err := models.NewTask("first", nil, nil, models.PriorityHigh, db.Now())
	if err != nil {
		t.Fatalf("Failed to build task: %v", err)
	}
	if err := db.CreateTask(ctx, first); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	advance(time.Second)

	second, err := models.NewTask("second", nil, nil, models.PriorityLow, db.Now())
	if err != nil {
		t.Fatalf("Failed to build task: %v", err)
	}
	if err := db.CreateTask(ctx, second); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if err := db.CompleteTask(ctx, first.ID); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	// Completed tasks are hidden by default
	open, err := db.ListTasks(ctx, false, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	for _, task := range open {
		if task.Completed {
			t.Errorf("List without completed returned completed task %d", task.ID)
		}
	}
	if len(open) != 1 || open[0].ID != second.ID {
		t.Errorf("Expected only the open task, got %d tasks", len(open))
	}

	// ... and present when asked for
	all, err := db.ListTasks(ctx, true, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 tasks with completed included, got %d", len(all))
	}

	// Priority filter matches exactly
	low := models.PriorityLow
	filtered, err := db.ListTasks(ctx, true, &low)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != second.ID {
		t.Errorf("Expected only the low-priority task, got %d tasks", len(filtered))
	}

	// No matches is an empty result, not an error
	high := models.PriorityHigh
	none, err := db.ListTasks(ctx, false, &high)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no tasks, got %d", len(none))
	}
}

func TestMutationsOnMissingID(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	missing := &models.Task{ID: 9999, Title: "ghost"}
	if err := db.UpdateTask(ctx, missing); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound from update, got %v", err)
	}

	// A failed update must not create the record
	fetched, err := db.GetTask(ctx, 9999)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched != nil {
		t.Errorf("Update on missing id must not create a record")
	}

	if err := db.CompleteTask(ctx, 9999); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound from complete, got %v", err)
	}
	if err := db.DeleteTask(ctx, 9999); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound from delete, got %v", err)
	}
}

func TestUpdateStampsServerSide(t *testing.T) {
	db, advance := openTestDB(t)
	ctx := context.Background()

	task, err := models.NewTask("stamped", nil, nil, models.PriorityMedium, db.Now())
	if err != nil {
		t.Fatalf("Failed to build task: %v", err)
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	advance(time.Hour)

	// Whatever the caller left in UpdatedAt is ignored.
	task.UpdatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := db.UpdateTask(ctx, task); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}

	if !task.UpdatedAt.Equal(db.Now()) {
		t.Errorf("Expected updated_at %v from the store clock, got %v", db.Now(), task.UpdatedAt)
	}
}

func TestOutOfRangePriorityReadBack(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	// Simulate a hand-edited database file with a corrupt ordinal.
	now := encodeTime(db.Now())
	res, err := db.Exec(
		`INSERT INTO tasks (title, priority, completed, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		"corrupt", 7, now, now,
	)
	if err != nil {
		t.Fatalf("Failed to insert raw row: %v", err)
	}
	id, _ := res.LastInsertId()

	task, err := db.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if task == nil {
		t.Fatalf("Task not found")
	}
	if got := task.Priority.Label(); got != "MEDIUM" {
		t.Errorf("Expected corrupt priority to render MEDIUM, got %s", got)
	}
}
