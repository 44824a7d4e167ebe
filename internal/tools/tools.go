// Package tools implements the MCP tools the server exposes to agents.
// Each tool is a small struct pairing an mcp.Tool definition with its
// handler, over the shared backend client, lock manager, and bus.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tasklane/tasklane_server/internal/backend"
	"github.com/tasklane/tasklane_server/internal/locks"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/guard"
	"github.com/tasklane/tasklane_server/pkg/reqctx"
)

// Deps is everything a tool may need. Locks may be nil when the server
// runs without redis; tools then skip advisory locking.
type Deps struct {
	Backend *backend.Client
	Bus     *events.Bus
	Locks   *locks.Manager
	Log     *slog.Logger
}

// Tool pairs an MCP definition with its handler.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// All returns every tool the server registers.
func All(d Deps) []Tool {
	return []Tool{
		NewTaskCreateTool(d),
		NewTaskUpdateTool(d),
		NewTaskDeleteTool(d),
		NewTaskListTool(d),
		NewTaskMoveTool(d),
		NewProjectListTool(d),
		NewSprintBoardTool(d),
	}
}

// errorResult maps backend failures to agent-readable tool errors. The
// error return stays nil so the failure travels as a tool result, not a
// protocol fault.
func errorResult(log *slog.Logger, op string, err error) *mcp.CallToolResult {
	var timeout *guard.TimeoutError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("%s: not found", op))
	case errors.Is(err, backend.ErrValidation):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
	case errors.As(err, &timeout):
		log.Warn("tool call timed out", "operation", op, "timeout_ms", timeout.Timeout.Milliseconds())
		return mcp.NewToolResultError(fmt.Sprintf("%s: backend timed out, try again", op))
	default:
		log.Error("tool call failed", "operation", op, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
	}
}

// jsonResult renders v as indented JSON.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// withLock runs fn while holding the advisory lock for the task, if an
// agent was named and a lock manager is wired. Contention is reported to
// the caller rather than waited out.
func (d Deps) withLock(ctx context.Context, taskID, agent string, fn func() (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	if d.Locks == nil || agent == "" {
		return fn()
	}
	ok, err := d.Locks.Acquire(ctx, "task", taskID, agent)
	if err != nil {
		return errorResult(d.Log, "lock", err), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("task %s is locked by another agent", taskID)), nil
	}
	defer func() {
		if err := d.Locks.Release(ctx, "task", taskID, agent); err != nil && !errors.Is(err, locks.ErrNotHeld) {
			d.Log.Warn("lock release failed", "task_id", taskID, "agent", agent, "error", err)
		}
	}()
	return fn()
}

// emit publishes ev tagged with the calling request's id for log
// correlation on slow subscribers.
func (d Deps) emit(ctx context.Context, ev events.Event) {
	if id := reqctx.RequestIDFromContext(ctx); id != "" {
		d.Log.Debug("emitting event", "kind", ev.Kind(), "request_id", id)
	}
	d.Bus.Emit(ctx, ev)
}
