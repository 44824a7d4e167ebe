package serve

import "github.com/spf13/cobra"

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "MCP server commands",
	}

	cmd.AddCommand(NewStartCommand())

	return cmd
}
