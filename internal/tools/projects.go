package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tasklane/tasklane_server/internal/backend"
)

// ProjectListTool handles the project_list MCP tool.
type ProjectListTool struct {
	deps Deps
}

func NewProjectListTool(d Deps) *ProjectListTool {
	return &ProjectListTool{deps: d}
}

func (t *ProjectListTool) Definition() mcp.Tool {
	return mcp.NewTool("project_list",
		mcp.WithDescription("List all projects. Archived projects are excluded unless include_archived is set."),
		mcp.WithString("include_archived",
			mcp.Description("Set to 'true' to include archived projects"),
		),
	)
}

func (t *ProjectListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.deps.Backend.ListProjects(ctx)
	if err != nil {
		return errorResult(t.deps.Log, "project_list", err), nil
	}

	if req.GetString("include_archived", "") != "true" {
		active := make([]backend.Project, 0, len(projects))
		for _, p := range projects {
			if !p.Archived {
				active = append(active, p)
			}
		}
		projects = active
	}
	return jsonResult(projects)
}
