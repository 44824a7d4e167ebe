package serve

import (
	"log/slog"
	"path/filepath"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/internal/app"
	"github.com/tasklane/tasklane_server/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Stderr-only logger until the configured one takes over;
			// stdout carries the protocol from the very first line.
			slog.SetDefault(logs.Default())

			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				slog.Error("reading config failed", "path", cfgPath, "error", err)
				return err
			}
			if shutdownTimeout > 0 {
				cfg.Shutdown.Timeout = shutdownTimeout
			}

			// Swap in the configured logger before fx starts so all
			// component logs share sinks and level.
			slog.SetDefault(logs.New(cfg))

			fxApp := fx.New(
				fx.Supply(cfg),
				app.CoreModule,
				app.InfraModule,
				app.ServerModule,
				fx.Invoke(func(*mcpserver.MCPServer) {}),
				fx.StopTimeout(cfg.Shutdown.Timeout+5*time.Second),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)

			fxApp.Run()
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 0, "Maximum time to wait for graceful shutdown (overrides config)")

	return cmd
}
