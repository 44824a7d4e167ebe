// Package server assembles the MCP server: tool registration plus the
// per-request lifecycle middleware. No business logic lives here.
package server

import (
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tasklane/tasklane_server/internal/tools"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New builds the MCP server with every tool registered and the lifecycle
// middleware installed.
func New(deps tools.Deps, log *slog.Logger, tracer *tracing.Manager) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"tasklane",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithToolHandlerMiddleware(lifecycle(log, tracer)),
		mcpserver.WithToolHandlerMiddleware(metrics()),
		mcpserver.WithInstructions(instructions),
	)

	for _, tool := range tools.All(deps) {
		s.AddTool(tool.Definition(), tool.Handle)
	}
	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
// Stdout carries the protocol; all diagnostics must go to stderr.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

const instructions = `You have access to tasklane, a task-management MCP server.

Tools operate on projects, sprints, and tasks owned by the tasklane backend.

- Use project_list to discover projects, then task_list to see their tasks.
- Use sprint_board for a kanban view of one sprint.
- task_create, task_update, task_move, and task_delete mutate tasks.
- When several agents work the same board, pass your agent id in the 'agent'
  argument of mutating tools so tasklane can take an advisory lock; a locked
  task returns an error instead of silently clobbering another agent's edit.
- Optionally set a correlation_id string in the call's _meta block; tasklane
  propagates it into its logs so you can line up your trace with the server's.`
