package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	servecmd "github.com/tasklane/tasklane_server/cmd/serve"
	systemcmd "github.com/tasklane/tasklane_server/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "tasklane",
	Short: "Tasklane MCP server for agent-driven task management.",
	Long: `Tasklane exposes a task-management backend (projects, sprints, kanban
tasks) to AI agents over the Model Context Protocol. The server speaks MCP
on stdio and keeps an internal HTTP endpoint for health and metrics.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(servecmd.NewServeCommand())
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
}
