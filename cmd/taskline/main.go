package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ldi/taskline/internal/config"
	"github.com/ldi/taskline/internal/db"
	"github.com/ldi/taskline/internal/mcp"
	"github.com/ldi/taskline/internal/ui"
	"github.com/ldi/taskline/pkg/models"
)

var cfg *config.Config

func main() {
	fs := flag.NewFlagSet("taskline", flag.ExitOnError)
	loaded, err := config.Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	var command string
	var args []string

	if fs.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = fs.Arg(0)
		args = fs.Args()[1:]
	}

	switch command {
	case "init":
		err = runInit(args)
	case "add":
		err = runAdd(args)
	case "list":
		err = runList(args)
	case "show":
		err = runShow(args)
	case "update":
		err = runUpdate(args)
	case "complete":
		err = runComplete(args)
	case "delete":
		err = runDelete(args)
	case "status":
		err = runStatus(args)
	case "export":
		err = runExport(args)
	case "import":
		err = runImport(args)
	case "mcp":
		err = runMCP(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB opens the configured database, applies the schema and hooks up
// auto-snapshotting when enabled.
func openDB() (*db.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if err := database.Init(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	log.Debug("opened database", "path", cfg.DBPath)

	if cfg.AutoSnapshot {
		database.EnableAutoSnapshot(cfg.SnapshotPath)
		log.Debug("auto-snapshot enabled", "path", cfg.SnapshotPath)
	}

	return database, nil
}

func newRenderer(database *db.DB) *ui.Renderer {
	return ui.NewRenderer(!cfg.NoColor, database.Now)
}

func parseID(args []string, command string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("usage: taskline %s <id>", command)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", args[0])
	}
	return id, nil
}

func runInit(args []string) error {
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	fmt.Printf("✓ Created %s\n", dir)

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()
	fmt.Printf("✓ Initialized database at %s\n", cfg.DBPath)

	// Restore from an existing snapshot, if any.
	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		if err := database.ImportSnapshot(context.Background(), cfg.SnapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Printf("✓ Imported snapshot from %s\n", cfg.SnapshotPath)
	}

	fmt.Println("✓ Taskline initialized successfully")
	return nil
}

func runAdd(args []string) error {
	addFlags := flag.NewFlagSet("add", flag.ContinueOnError)
	description := addFlags.String("description", "", "Task description")
	due := addFlags.String("due", "", "Due date (YYYY-MM-DD or RFC3339)")
	priorityName := addFlags.String("priority", "medium", "Priority level (low, medium, high)")
	if err := addFlags.Parse(args); err != nil {
		return err
	}

	if addFlags.NArg() == 0 {
		return fmt.Errorf("usage: taskline add [flags] <title>")
	}
	title := addFlags.Arg(0)

	priority, err := models.ParsePriority(*priorityName)
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	var desc *string
	if *description != "" {
		desc = description
	}

	var dueDate *time.Time
	if *due != "" {
		d, err := models.ParseDueDate(*due)
		if err != nil {
			return err
		}
		if err := models.ValidateFutureDueDate(d, database.Now()); err != nil {
			return err
		}
		dueDate = &d
	}

	task, err := models.NewTask(title, desc, dueDate, priority, database.Now())
	if err != nil {
		return err
	}

	if err := database.CreateTask(context.Background(), task); err != nil {
		return err
	}

	fmt.Printf("✓ Task added with ID: %d\n", task.ID)
	return nil
}

func runList(args []string) error {
	listFlags := flag.NewFlagSet("list", flag.ContinueOnError)
	completed := listFlags.Bool("completed", false, "Include completed tasks")
	priorityName := listFlags.String("priority", "", "Filter by priority (low, medium, high)")
	if err := listFlags.Parse(args); err != nil {
		return err
	}

	var priority *models.Priority
	if *priorityName != "" {
		p, err := models.ParsePriority(*priorityName)
		if err != nil {
			return err
		}
		priority = &p
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	tasks, err := database.ListTasks(context.Background(), *completed, priority)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	renderer := newRenderer(database)
	fmt.Println("Your tasks:")
	fmt.Println(ui.Rule())
	for _, t := range tasks {
		fmt.Println(renderer.Summary(t))
	}
	fmt.Println(ui.Rule())
	fmt.Printf("Total: %d tasks\n", len(tasks))
	return nil
}

func runShow(args []string) error {
	id, err := parseID(args, "show")
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	task, err := database.GetTask(context.Background(), id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task with ID %d not found", id)
	}

	renderer := newRenderer(database)
	fmt.Println("Task Details:")
	fmt.Println(ui.Rule())
	fmt.Println(renderer.Detail(task))
	fmt.Println(ui.Rule())
	return nil
}

func runUpdate(args []string) error {
	id, err := parseID(args, "update")
	if err != nil {
		return err
	}

	updateFlags := flag.NewFlagSet("update", flag.ContinueOnError)
	title := updateFlags.String("title", "", "New title")
	description := updateFlags.String("description", "", "New description")
	due := updateFlags.String("due", "", "New due date (YYYY-MM-DD or RFC3339)")
	priorityName := updateFlags.String("priority", "", "New priority level")
	if err := updateFlags.Parse(args[1:]); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	exists, err := database.TaskExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task with ID %d not found", id)
	}

	task, err := database.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if *title != "" {
		task.Title = *title
	}
	if *description != "" {
		task.Description = description
	}
	if *due != "" {
		d, err := models.ParseDueDate(*due)
		if err != nil {
			return err
		}
		if err := models.ValidateFutureDueDate(d, database.Now()); err != nil {
			return err
		}
		task.DueDate = &d
	}
	if *priorityName != "" {
		p, err := models.ParsePriority(*priorityName)
		if err != nil {
			return err
		}
		task.Priority = p
	}

	if err := database.UpdateTask(ctx, task); err != nil {
		return err
	}

	fmt.Printf("✓ Task %d updated successfully\n", id)
	return nil
}

func runComplete(args []string) error {
	id, err := parseID(args, "complete")
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	exists, err := database.TaskExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task with ID %d not found", id)
	}

	if err := database.CompleteTask(ctx, id); err != nil {
		return err
	}

	fmt.Printf("✓ Task %d marked as completed\n", id)
	return nil
}

func runDelete(args []string) error {
	id, err := parseID(args, "delete")
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	exists, err := database.TaskExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task with ID %d not found", id)
	}

	if err := database.DeleteTask(ctx, id); err != nil {
		return err
	}

	fmt.Printf("✓ Task %d deleted\n", id)
	return nil
}

func runStatus(args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	tasks, err := database.ListTasks(ctx, true, nil)
	if err != nil {
		return err
	}

	var pending, completed, overdue int
	now := database.Now()
	for _, t := range tasks {
		if t.Completed {
			completed++
		} else {
			pending++
		}
		if t.IsOverdue(now) {
			overdue++
		}
	}

	fmt.Println("Taskline Status")
	fmt.Println("===============")
	fmt.Printf("Total Tasks: %d\n", len(tasks))
	fmt.Printf("  Pending:   %d\n", pending)
	fmt.Printf("  Completed: %d\n", completed)
	fmt.Printf("  Overdue:   %d\n", overdue)
	return nil
}

func runExport(args []string) error {
	path := cfg.SnapshotPath
	if len(args) > 0 {
		path = args[0]
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ExportSnapshot(context.Background(), path); err != nil {
		return err
	}

	fmt.Printf("✓ Exported snapshot to %s\n", path)
	return nil
}

func runImport(args []string) error {
	path := cfg.SnapshotPath
	if len(args) > 0 {
		path = args[0]
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ImportSnapshot(context.Background(), path); err != nil {
		return err
	}

	fmt.Printf("✓ Imported snapshot from %s\n", path)
	return nil
}

func runMCP(args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	// The MCP server mutates on behalf of an agent; keep the snapshot
	// current after every write.
	database.EnableAutoSnapshot(cfg.SnapshotPath)

	s := mcp.NewServer(database)
	return mcp.Serve(s)
}
