package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tasklane/tasklane_server/pkg/reqctx"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// correlationMetaKey is where upstream callers put their correlation id
// in a tool call's _meta block.
const correlationMetaKey = "correlation_id"

// lifecycle wraps every tool handler with the request context, a bound
// logger, and a server-side span. The request id is generated here and is
// observable for exactly the handler's dynamic extent; a correlation id is
// only ever propagated, never minted.
func lifecycle(log *slog.Logger, tracer *tracing.Manager) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			partial := reqctx.Partial{
				RequestID:     reqctx.NewRequestID(),
				CorrelationID: correlationID(req),
				Metadata:      map[string]any{"tool": req.Params.Name},
			}

			var res *mcp.CallToolResult
			runErr := reqctx.RunWith(ctx, partial, func(ctx context.Context) error {
				rl := reqctx.WithRequestLogger(ctx, log)
				rl.Info("tool call started", "tool", req.Params.Name)

				attrs := []attribute.KeyValue{
					attribute.String("mcp.tool", req.Params.Name),
					attribute.String("request.id", partial.RequestID),
				}
				return tracer.WithSpan(ctx, "mcp."+req.Params.Name, attrs, func(ctx context.Context) error {
					var err error
					res, err = next(ctx, req)
					if err != nil {
						rl.Error("tool call failed",
							"tool", req.Params.Name,
							"duration_ms", reqctx.DurationFromContext(ctx).Milliseconds(),
							"error", err,
						)
						return err
					}
					if res != nil && res.IsError {
						tracing.SetSpanStatus(ctx, codes.Error, "tool returned error result")
					}
					rl.Info("tool call completed",
						"tool", req.Params.Name,
						"duration_ms", reqctx.DurationFromContext(ctx).Milliseconds(),
						"is_error", res != nil && res.IsError,
					)
					return nil
				})
			})
			return res, runErr
		}
	}
}

// correlationID extracts a propagated correlation id from the request's
// _meta block, or "" when the caller sent none.
func correlationID(req mcp.CallToolRequest) string {
	if req.Params.Meta == nil || req.Params.Meta.AdditionalFields == nil {
		return ""
	}
	if v, ok := req.Params.Meta.AdditionalFields[correlationMetaKey].(string); ok {
		return v
	}
	return ""
}
