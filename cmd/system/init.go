package system

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `server:
  name: tasklane
  environment: development

backend:
  base_url: http://localhost:8080
  api_key: ""
  timeout_ms: 10000

redis:
  addr: ""

nats:
  enabled: false
  url: nats://localhost:4222

locks:
  ttl: 30s
  sweep_interval: 5s

health:
  interval: 15s
  probe_timeout: 3s

ops:
  enabled: true
  port: 9091

shutdown:
  timeout: 30s

observability:
  enabled: false
  otlp_endpoint: ""
  sampling_rate: 1.0

logging:
  level: info
  format: json
  output:
    stderr: true
`

func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}

			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(starterConfig), 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote starter config to %s\n", cfgPath)
			return nil
		},
	}

	return cmd
}
