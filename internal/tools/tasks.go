package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tasklane/tasklane_server/internal/backend"
	"github.com/tasklane/tasklane_server/pkg/events"
)

// TaskCreateTool handles the task_create MCP tool.
type TaskCreateTool struct {
	deps Deps
}

func NewTaskCreateTool(d Deps) *TaskCreateTool {
	return &TaskCreateTool{deps: d}
}

func (t *TaskCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("task_create",
		mcp.WithDescription("Create a task in a project. Returns the created task as JSON."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project the task belongs to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short task title"),
		),
		mcp.WithString("description",
			mcp.Description("Longer task description, markdown allowed"),
		),
		mcp.WithString("sprint_id",
			mcp.Description("Sprint to place the task in"),
		),
		mcp.WithString("status",
			mcp.Description("Initial status column (default: backlog)"),
		),
		mcp.WithString("assignee",
			mcp.Description("Agent or user the task is assigned to"),
		),
		mcp.WithString("priority",
			mcp.Description("One of: low, medium, high, urgent"),
		),
	)
}

func (t *TaskCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	title := req.GetString("title", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	task, err := t.deps.Backend.CreateTask(ctx, backend.TaskCreate{
		ProjectID:   projectID,
		SprintID:    req.GetString("sprint_id", ""),
		Title:       title,
		Description: req.GetString("description", ""),
		Status:      req.GetString("status", ""),
		Assignee:    req.GetString("assignee", ""),
		Priority:    req.GetString("priority", ""),
	})
	if err != nil {
		return errorResult(t.deps.Log, "task_create", err), nil
	}

	t.deps.emit(ctx, events.EntityCreated{EntityType: "task", EntityID: task.ID})
	return jsonResult(task)
}

// TaskUpdateTool handles the task_update MCP tool.
type TaskUpdateTool struct {
	deps Deps
}

func NewTaskUpdateTool(d Deps) *TaskUpdateTool {
	return &TaskUpdateTool{deps: d}
}

func (t *TaskUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("task_update",
		mcp.WithDescription("Update fields of an existing task. Only the supplied fields change."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to update"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("description",
			mcp.Description("New description"),
		),
		mcp.WithString("status",
			mcp.Description("New status column"),
		),
		mcp.WithString("assignee",
			mcp.Description("New assignee"),
		),
		mcp.WithString("priority",
			mcp.Description("New priority: low, medium, high, urgent"),
		),
		mcp.WithString("agent",
			mcp.Description("Calling agent's id, used for advisory locking"),
		),
	)
}

func (t *TaskUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	args := req.GetArguments()
	patch := map[string]any{}
	for _, field := range []string{"title", "description", "status", "assignee", "priority"} {
		if v, ok := args[field]; ok {
			patch[field] = v
		}
	}
	if len(patch) == 0 {
		return mcp.NewToolResultError("task_update: no fields to change"), nil
	}

	agent := req.GetString("agent", "")
	return t.deps.withLock(ctx, taskID, agent, func() (*mcp.CallToolResult, error) {
		task, err := t.deps.Backend.UpdateTask(ctx, taskID, patch)
		if err != nil {
			return errorResult(t.deps.Log, "task_update", err), nil
		}
		t.deps.emit(ctx, events.EntityUpdated{
			EntityType:    "task",
			EntityID:      task.ID,
			ChangedFields: patchFields(patch),
		})
		return jsonResult(task)
	})
}

// patchFields returns the patch's keys in a stable order.
func patchFields(patch map[string]any) []string {
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// TaskDeleteTool handles the task_delete MCP tool.
type TaskDeleteTool struct {
	deps Deps
}

func NewTaskDeleteTool(d Deps) *TaskDeleteTool {
	return &TaskDeleteTool{deps: d}
}

func (t *TaskDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("task_delete",
		mcp.WithDescription("Delete a task permanently."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to delete"),
		),
		mcp.WithString("agent",
			mcp.Description("Calling agent's id, used for advisory locking"),
		),
	)
}

func (t *TaskDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	agent := req.GetString("agent", "")
	return t.deps.withLock(ctx, taskID, agent, func() (*mcp.CallToolResult, error) {
		if err := t.deps.Backend.DeleteTask(ctx, taskID); err != nil {
			return errorResult(t.deps.Log, "task_delete", err), nil
		}
		t.deps.emit(ctx, events.EntityDeleted{EntityType: "task", EntityID: taskID})
		return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted", taskID)), nil
	})
}

// TaskListTool handles the task_list MCP tool.
type TaskListTool struct {
	deps Deps
}

func NewTaskListTool(d Deps) *TaskListTool {
	return &TaskListTool{deps: d}
}

func (t *TaskListTool) Definition() mcp.Tool {
	return mcp.NewTool("task_list",
		mcp.WithDescription("List the tasks of a project, optionally filtered by status or assignee."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project to list tasks from"),
		),
		mcp.WithString("status",
			mcp.Description("Only tasks in this status column"),
		),
		mcp.WithString("assignee",
			mcp.Description("Only tasks assigned to this agent or user"),
		),
	)
}

func (t *TaskListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}

	tasks, err := t.deps.Backend.ListTasks(ctx, projectID)
	if err != nil {
		return errorResult(t.deps.Log, "task_list", err), nil
	}

	status := req.GetString("status", "")
	assignee := req.GetString("assignee", "")
	filtered := make([]backend.Task, 0, len(tasks))
	for _, task := range tasks {
		if status != "" && task.Status != status {
			continue
		}
		if assignee != "" && task.Assignee != assignee {
			continue
		}
		filtered = append(filtered, task)
	}
	return jsonResult(filtered)
}

// TaskMoveTool handles the task_move MCP tool.
type TaskMoveTool struct {
	deps Deps
}

func NewTaskMoveTool(d Deps) *TaskMoveTool {
	return &TaskMoveTool{deps: d}
}

func (t *TaskMoveTool) Definition() mcp.Tool {
	return mcp.NewTool("task_move",
		mcp.WithDescription("Move a task to another status column and, optionally, another sprint."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to move"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Target status column"),
		),
		mcp.WithString("sprint_id",
			mcp.Description("Target sprint"),
		),
		mcp.WithString("agent",
			mcp.Description("Calling agent's id, used for advisory locking"),
		),
	)
}

func (t *TaskMoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	status := req.GetString("status", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	if status == "" {
		return mcp.NewToolResultError("'status' is required"), nil
	}

	patch := map[string]any{"status": status}
	if sprintID := req.GetString("sprint_id", ""); sprintID != "" {
		patch["sprint_id"] = sprintID
	}

	agent := req.GetString("agent", "")
	return t.deps.withLock(ctx, taskID, agent, func() (*mcp.CallToolResult, error) {
		task, err := t.deps.Backend.UpdateTask(ctx, taskID, patch)
		if err != nil {
			return errorResult(t.deps.Log, "task_move", err), nil
		}
		t.deps.emit(ctx, events.EntityUpdated{
			EntityType:    "task",
			EntityID:      task.ID,
			ChangedFields: patchFields(patch),
		})
		return jsonResult(task)
	})
}
