package cmd

import (
	"time"

	"insightmcp/internal/cli"

	"github.com/spf13/cobra"
)

// tokenStatus is one row of auth status output.
type tokenStatus struct {
	Kind      string     `json:"kind" yaml:"kind"`
	State     string     `json:"state" yaml:"state"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// newAuthStatusCmd creates the auth status command.
func newAuthStatusCmd(flags *rootFlags) *cobra.Command {
	var output cli.OutputFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached tokens",
		Long: `Show which scope tokens are cached and when they expire.

Token values are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.Format()
			if err != nil {
				return err
			}

			application, err := newApplication(cmd, flags)
			if err != nil {
				return err
			}
			defer application.Close()

			var rows []tokenStatus
			for _, st := range application.Services().Acquirer.Status() {
				row := tokenStatus{Kind: st.Name, State: "missing"}
				if st.Cached {
					row.State = "cached"
					row.ExpiresAt = st.Expiry
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			if format != cli.OutputFormatTable {
				return cli.PrintStructured(out, format, rows)
			}

			color := cli.IsTerminal(out)
			tw := cli.NewPlainTableWriter(out)
			tw.SetHeaders([]string{"token", "state", "expires"})
			tw.SetNoHeaders(output.NoHeaders)
			for _, r := range rows {
				expires := "-"
				if r.ExpiresAt != nil {
					expires = r.ExpiresAt.Local().Format(time.RFC3339)
				}
				tw.AppendRow([]string{r.Kind, cli.FormatState(r.State, color), expires})
			}
			tw.Render()
			return nil
		},
	}

	cli.RegisterOutputFlags(cmd, &output)
	return cmd
}
