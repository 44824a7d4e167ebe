// Package app assembles the fx dependency graph: core primitives,
// infrastructure clients, and the MCP server itself.
package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/shutdown"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// CoreModule provides the request-lifecycle primitives shared by every
// other module.
var CoreModule = fx.Module("core",
	fx.Provide(
		ProvideBus,
		ProvideOrchestrator,
		ProvideTracer,
	),
)

func ProvideBus() *events.Bus {
	return events.NewBus(slog.Default())
}

// ProvideOrchestrator builds the shutdown orchestrator and hooks it into
// fx teardown. Infrastructure providers register their cleanups on it in
// dependency order; the orchestrator then runs them in reverse under the
// configured global deadline.
func ProvideOrchestrator(lc fx.Lifecycle, cfg *config.Config) *shutdown.Orchestrator {
	orch := shutdown.New(slog.Default(), cfg.Shutdown.Timeout)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stats := orch.Shutdown(ctx)
			slog.Info("shutdown complete",
				"resources", stats.ResourceCount,
				"duration_ms", stats.Duration.Milliseconds(),
				"timed_out", stats.TimedOut,
				"errors", len(stats.Errors),
			)
			for _, err := range stats.Errors {
				slog.Warn("cleanup error", "error", err)
			}
			return nil
		},
	})
	return orch
}

func ProvideTracer() *tracing.Manager {
	return tracing.NewManager(otel.Tracer("tasklane"))
}
