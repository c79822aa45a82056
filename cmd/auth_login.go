package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/cli"
	"insightmcp/internal/deviceauth"

	"github.com/spf13/cobra"
)

// loginPollInterval is how often login checks the flow while waiting for
// the user.
var loginPollInterval = 2 * time.Second

// newAuthLoginCmd creates the auth login command.
func newAuthLoginCmd(flags *rootFlags) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a device code",
		Long: `Sign in with the device authorization flow.

The command prints a verification URL and a user code, then waits while you
complete sign-in in a browser. Once the identity provider confirms, all
configured scope tokens are fetched and reported.

Exit codes:
  0  signed in
  3  the device flow failed (declined, expired or timed out)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd, flags, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress spinner")
	return cmd
}

func runAuthLogin(cmd *cobra.Command, flags *rootFlags, quiet bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	application, err := newApplication(cmd, flags)
	if err != nil {
		return err
	}
	defer application.Close()

	if !application.Settings().TokenCache.Persist {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.Warning("tokenCache.persist is disabled; tokens will not outlive this command"))
	}

	authenticator := application.Services().Authenticator
	start, err := authenticator.Start(ctx)
	if err != nil {
		return err
	}
	if !start.Finished {
		fmt.Fprintln(out, start.Message)
		fmt.Fprintf(out, "  URL:  %s\n  Code: %s\n\n", start.VerificationURI, start.UserCode)
	}

	spin := cli.NewSpinner(cmd.ErrOrStderr(), "Waiting for sign-in...", quiet)
	defer spin.Stop()

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()
	started := time.Now()

	for {
		status := authenticator.CheckStatus(ctx)
		switch status.Status {
		case deviceauth.StatusComplete:
			spin.Stop()
			printLoginResult(out, status)
			return nil
		case deviceauth.StatusFailed:
			return &api.DeviceFlowFailedError{Reason: status.Reason}
		case deviceauth.StatusNone:
			return &api.DeviceFlowFailedError{Reason: "sign-in was abandoned"}
		}

		select {
		case <-ticker.C:
			spin.SetSuffix(fmt.Sprintf("Waiting for sign-in (%s)...", time.Since(started).Round(time.Second)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printLoginResult(out io.Writer, status *deviceauth.StatusResult) {
	who := status.Username
	if who == "" {
		who = status.Account
	}
	fmt.Fprintln(out, cli.Success("Signed in as "+who))

	kinds := make([]string, 0, len(status.Tokens))
	for kind := range status.Tokens {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	color := cli.IsTerminal(out)
	tw := cli.NewPlainTableWriter(out)
	tw.SetHeaders([]string{"token", "state"})
	for _, kind := range kinds {
		state := status.Tokens[kind]
		if state != "ready" {
			state = "failed: " + state
		}
		tw.AppendRow([]string{kind, cli.FormatState(state, color)})
	}
	tw.Render()
}
