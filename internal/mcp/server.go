package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/taskline/internal/db"
	"github.com/ldi/taskline/pkg/models"
)

// NewServer creates a new MCP server exposing the task store over stdio.
func NewServer(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer("Taskline", "0.1.0")

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Create a new task."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD or RFC3339, must be in the future)")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high, defaults to medium)")),
	), addTaskHandler(database))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks ordered by priority, oldest first within equal priority."),
		mcp.WithBoolean("include_completed", mcp.Description("Include completed tasks")),
		mcp.WithString("priority", mcp.Description("Filter by priority (low|medium|high)")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by id."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), getTaskHandler(database))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of an existing task."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("due_date", mcp.Description("New due date (YYYY-MM-DD or RFC3339, must be in the future)")),
		mcp.WithString("priority", mcp.Description("New priority (low|medium|high)")),
	), updateTaskHandler(database))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), completeTaskHandler(database))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task permanently."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		priorityName := mcp.ParseString(request, "priority", "medium")

		priority, err := models.ParsePriority(priorityName)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args, _ := request.Params.Arguments.(map[string]any)

		var description *string
		if d, ok := args["description"].(string); ok {
			description = &d
		}

		var due *time.Time
		if s, ok := args["due_date"].(string); ok {
			d, err := models.ParseDueDate(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := models.ValidateFutureDueDate(d, database.Now()); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			due = &d
		}

		t, err := models.NewTask(title, description, due, priority, database.Now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := database.CreateTask(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task created with ID: %d", t.ID)), nil
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		includeCompleted := mcp.ParseBoolean(request, "include_completed", false)

		var priority *models.Priority
		args, _ := request.Params.Arguments.(map[string]any)
		if s, ok := args["priority"].(string); ok {
			p, err := models.ParsePriority(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			priority = &p
		}

		tasks, err := database.ListTasks(ctx, includeCompleted, priority)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func getTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(mcp.ParseInt(request, "id", 0))

		t, err := database.GetTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID %d not found", id)), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func updateTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(mcp.ParseInt(request, "id", 0))

		t, err := database.GetTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID %d not found", id)), nil
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if title, ok := args["title"].(string); ok {
			t.Title = title
		}
		if description, ok := args["description"].(string); ok {
			t.Description = &description
		}
		if s, ok := args["due_date"].(string); ok {
			d, err := models.ParseDueDate(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := models.ValidateFutureDueDate(d, database.Now()); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t.DueDate = &d
		}
		if s, ok := args["priority"].(string); ok {
			p, err := models.ParsePriority(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t.Priority = p
		}

		if err := database.UpdateTask(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText("Task updated successfully"), nil
	}
}

func completeTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(mcp.ParseInt(request, "id", 0))

		if err := database.CompleteTask(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task %d marked as completed", id)), nil
	}
}

func deleteTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(mcp.ParseInt(request, "id", 0))

		if err := database.DeleteTask(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task %d deleted", id)), nil
	}
}
