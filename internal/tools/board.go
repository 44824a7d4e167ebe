package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// SprintBoardTool handles the sprint_board MCP tool.
type SprintBoardTool struct {
	deps Deps
}

func NewSprintBoardTool(d Deps) *SprintBoardTool {
	return &SprintBoardTool{deps: d}
}

func (t *SprintBoardTool) Definition() mcp.Tool {
	return mcp.NewTool("sprint_board",
		mcp.WithDescription("Show a sprint's kanban board: its columns and the ordered tasks in each."),
		mcp.WithString("sprint_id",
			mcp.Required(),
			mcp.Description("Sprint to show"),
		),
	)
}

func (t *SprintBoardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID := req.GetString("sprint_id", "")
	if sprintID == "" {
		return mcp.NewToolResultError("'sprint_id' is required"), nil
	}

	board, err := t.deps.Backend.SprintBoard(ctx, sprintID)
	if err != nil {
		return errorResult(t.deps.Log, "sprint_board", err), nil
	}
	return jsonResult(board)
}
