package cmd

import (
	"errors"
	"fmt"
	"os"

	"insightmcp/internal/api"
	"insightmcp/internal/app"
	"insightmcp/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no usable token: sign in first.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the device authorization flow failed.
	ExitCodeAuthFailed = 3
	// ExitCodeDomainRefused indicates the domain guard refused the request.
	ExitCodeDomainRefused = 4
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	debug      bool
	configPath string
}

// rootCmd represents the base command for the insightmcp application.
var rootCmd = newRootCmd()

// newRootCmd builds the command tree. Each tree owns its flag values.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "insightmcp",
		Short: "Domain-isolated BI analytics over MCP",
		Long: `insightmcp serves per-domain analytics tools to MCP clients.

Each business domain is bound to its own BI datasets. Tools run DAX queries
against the bound dataset only, using tokens obtained once through the device
authorization flow and refreshed silently afterwards.`,
		// Errors are reported by Execute with a semantic exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "insightmcp version %s\n" .Version}}`)

	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Configuration file (default $HOME/.config/insightmcp/config.yaml)")

	root.AddCommand(
		newServeCmd(flags),
		newAuthCmd(flags),
		newDomainsCmd(flags),
		newQueryCmd(flags),
		newVersionCmd(),
	)
	return root
}

// SetVersion sets the version reported by --version and the MCP handshake.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to a documented exit code for scripting.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case api.IsAuthenticationRequired(err), api.IsAuthenticationExpired(err), api.IsTokenAcquisition(err):
		return ExitCodeAuthRequired
	case api.IsDeviceFlowFailed(err):
		return ExitCodeAuthFailed
	case api.IsCrossDomainViolation(err), api.IsSchemaValidationFailed(err), api.IsUnknownDomain(err):
		return ExitCodeDomainRefused
	default:
		return ExitCodeError
	}
}

// errorMessage prefers the detailed form of configuration errors.
func errorMessage(err error) string {
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.DetailedError()
	}
	return err.Error()
}

// newApplication loads configuration and wires services for a subcommand.
// Logs go to the command's stderr.
func newApplication(cmd *cobra.Command, flags *rootFlags) (*app.Application, error) {
	return app.NewApplication(appConfig(cmd, flags))
}

func appConfig(cmd *cobra.Command, flags *rootFlags) *app.Config {
	cfg := app.NewConfig(flags.debug, flags.configPath)
	cfg.Version = cmd.Root().Version
	cfg.LogOutput = cmd.ErrOrStderr()
	return cfg
}
