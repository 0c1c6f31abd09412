package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	embedschema "github.com/ldi/taskline/embed/schema"
	"github.com/ldi/taskline/pkg/models"
)

// snapshotMeta is the first line of every snapshot file. The uuid lets
// imports be traced back to the export that produced them.
type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	SnapshotID string    `json:"snapshot_id"`
	ExportedAt time.Time `json:"exported_at"`
}

type snapshotTask struct {
	RecordType string `json:"record_type"`
	*models.Task
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the
		// original write.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes all tasks as JSONL to the given path atomically
// using a temporary file. The first line is a meta record; task records
// follow in id order.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	meta := snapshotMeta{
		RecordType: "meta",
		SnapshotID: uuid.New().String(),
		ExportedAt: db.Now(),
	}
	if err := writeSnapshotLine(tempFile, meta); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, title, description, due_date, priority, completed, created_at, updated_at
		FROM tasks
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query tasks for snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return fmt.Errorf("failed to scan task for snapshot: %w", err)
		}
		if err := writeSnapshotLine(tempFile, snapshotTask{RecordType: "task", Task: t}); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func writeSnapshotLine(f *os.File, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write snapshot line: %w", err)
	}
	return nil
}

// ImportSnapshot reads a JSONL snapshot and populates the database.
// Every task line is validated against the embedded JSON Schema first;
// one invalid line aborts the whole import. Records keep their snapshot
// ids, matching rows are updated in place.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	schema, err := compileSnapshotSchema()
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Existing ids, so snapshot records can update rather than collide.
	existing := make(map[int64]bool)
	err = func() error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM tasks")
		if err != nil {
			return fmt.Errorf("failed to query task ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			existing[id] = true
		}
		return rows.Err()
	}()
	if err != nil {
		return err
	}

	lineNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return fmt.Errorf("failed to unmarshal record on line %d: %w", lineNo, err)
		}

		switch base.RecordType {
		case "meta":
			// Skip meta
		case "task":
			if err := validateSnapshotLine(schema, line); err != nil {
				return fmt.Errorf("invalid task record on line %d: %w", lineNo, err)
			}

			var rec snapshotTask
			rec.Task = &models.Task{}
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal task on line %d: %w", lineNo, err)
			}
			t := rec.Task

			if existing[t.ID] {
				_, err = tx.ExecContext(ctx, `
					UPDATE tasks
					SET title = ?, description = ?, due_date = ?, priority = ?, completed = ?,
					    created_at = ?, updated_at = ?
					WHERE id = ?`,
					t.Title, t.Description, encodeDueDate(t.DueDate), int(t.Priority), t.Completed,
					encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt), t.ID)
			} else {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO tasks (id, title, description, due_date, priority, completed, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					t.ID, t.Title, t.Description, encodeDueDate(t.DueDate), int(t.Priority), t.Completed,
					encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
			}
			if err != nil {
				return fmt.Errorf("failed to sync task %d: %w", t.ID, err)
			}
			existing[t.ID] = true
		default:
			return fmt.Errorf("unknown record type %q on line %d", base.RecordType, lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func compileSnapshotSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot_task.schema.json", strings.NewReader(embedschema.SnapshotTask)); err != nil {
		return nil, fmt.Errorf("failed to load snapshot schema: %w", err)
	}
	schema, err := compiler.Compile("snapshot_task.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	return schema, nil
}

func validateSnapshotLine(schema *jsonschema.Schema, line []byte) error {
	var v interface{}
	if err := json.Unmarshal(line, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
