package cmd

import (
	"fmt"

	"insightmcp/internal/cli"

	"github.com/spf13/cobra"
)

// newAuthCmd creates the auth command group.
func newAuthCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage sign-in and cached tokens",
		Long: `Manage the tokens insightmcp uses to query BI datasets.

Sign-in uses the device authorization flow: insightmcp prints a short code,
you enter it in a browser, and the primary, profile and delegated API tokens
are fetched once the identity provider confirms. With tokenCache.persist
enabled the tokens are written to disk so a later 'insightmcp serve' can use
them until they expire.

Examples:
  insightmcp auth login                # Sign in with a device code
  insightmcp auth status               # Show cached tokens
  insightmcp auth status -o json       # Same, as JSON
  insightmcp auth logout               # Drop every cached token`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(flags),
		newAuthStatusCmd(flags),
		newAuthLogoutCmd(flags),
	)
	return cmd
}

// newAuthLogoutCmd creates the auth logout command.
func newAuthLogoutCmd(flags *rootFlags) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear cached tokens",
		Long: `Clear every cached token, in memory and on disk.

The next tool call fails with an authentication error until you sign in
again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, flags)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Services().Acquirer.Logout(); err != nil {
				return fmt.Errorf("failed to clear token cache: %w", err)
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), cli.Success("Signed out; cached tokens cleared"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	return cmd
}
