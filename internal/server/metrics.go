package server

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tasklane/tasklane_server/internal/server"

// metrics instruments every tool call with a counter and a duration
// histogram, exported through the Prometheus reader on the ops endpoint.
func metrics() mcpserver.ToolHandlerMiddleware {
	meter := otel.Meter(meterName)

	callCounter, _ := meter.Int64Counter(
		"mcp_server_tool_call_count",
		metric.WithDescription("Total number of MCP tool calls"),
		metric.WithUnit("{call}"),
	)

	callDuration, _ := meter.Float64Histogram(
		"mcp_server_tool_call_duration_ms",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)
			duration := float64(time.Since(start).Microseconds()) / 1000.0

			status := "success"
			switch {
			case err != nil:
				status = "error"
			case res != nil && res.IsError:
				status = "tool_error"
			}
			attrs := metric.WithAttributes(
				attribute.String("mcp.tool", req.Params.Name),
				attribute.String("status", status),
			)
			callCounter.Add(ctx, 1, attrs)
			callDuration.Record(ctx, duration, attrs)

			return res, err
		}
	}
}
