package cmd

import (
	"fmt"

	"insightmcp/internal/app"

	"github.com/spf13/cobra"
)

// newServeCmd creates the command that serves MCP on stdio.
func newServeCmd(flags *rootFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auth and domain tools over MCP stdio",
		Long: `Serves MCP over stdin and stdout until the client disconnects.

The server exposes the sign-in tools (start_login, check_login_status,
auth_status, logout) and one tool per configured domain query. Logs are
written to stderr because stdout carries the protocol.

Configuration:
  insightmcp reads $HOME/.config/insightmcp/config.yaml unless --config is
  given. INSIGHTMCP_TENANT_ID and INSIGHTMCP_CLIENT_ID override the identity
  section.

Metrics:
  With --metrics-addr (or metrics.addr) a Prometheus endpoint is served on
  http://<addr>/metrics alongside the MCP transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig(cmd, flags)
			cfg.MetricsAddr = metricsAddr
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return cmd
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, cfg *app.Config) error {
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run(cmd.Context())
}
