package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/internal/backend"
	"github.com/tasklane/tasklane_server/internal/health"
	"github.com/tasklane/tasklane_server/internal/locks"
	"github.com/tasklane/tasklane_server/internal/ops"
	srv "github.com/tasklane/tasklane_server/internal/server"
	"github.com/tasklane/tasklane_server/internal/tools"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// ServerModule provides the MCP server and the internal ops endpoint.
var ServerModule = fx.Module("server",
	fx.Provide(
		ProvideMCPServer,
		ProvideOpsApp,
	),
	fx.Invoke(RegisterMCPServer),
	fx.Invoke(RegisterOpsApp),
)

func ProvideMCPServer(cfg *config.Config, client *backend.Client, bus *events.Bus, lockMgr *locks.Manager, tracer *tracing.Manager) *mcpserver.MCPServer {
	srv.Version = cfg.Server.Version
	deps := tools.Deps{
		Backend: client,
		Bus:     bus,
		Locks:   lockMgr,
		Log:     slog.Default(),
	}
	return srv.New(deps, slog.Default(), tracer)
}

func ProvideOpsApp(cfg *config.Config, monitor *health.Monitor, bus *events.Bus) *fiber.App {
	if !cfg.Ops.Enabled {
		return nil
	}
	return ops.New(monitor, bus)
}

// RegisterMCPServer serves the stdio transport. When the client closes
// stdin the serve loop returns and the whole app shuts down.
func RegisterMCPServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, s *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ServeStdio(s); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("stdio server error", "error", err)
				}
				if err := shutdowner.Shutdown(); err != nil {
					slog.Error("shutdown signal failed", "error", err)
				}
			}()
			return nil
		},
	})
}

func RegisterOpsApp(lc fx.Lifecycle, cfg *config.Config, app *fiber.App) {
	if app == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", cfg.Ops.Port)
			go func() {
				// The fiber banner goes to stdout, which is reserved for
				// protocol frames.
				if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("ops server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
