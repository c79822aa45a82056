package cmd

import (
	"fmt"
	"io"
	"sort"

	"insightmcp/internal/cli"
	"insightmcp/internal/dispatcher"

	"github.com/spf13/cobra"
)

// newQueryCmd creates the command that runs an ad hoc DAX query through the
// domain guard.
func newQueryCmd(flags *rootFlags) *cobra.Command {
	var (
		output  cli.OutputFlags
		dataset string
	)

	cmd := &cobra.Command{
		Use:   "query <domain> <dax>",
		Short: "Run a DAX query against a domain's dataset",
		Long: `Run a DAX query for one domain, exactly as a domain tool would.

The query goes through the same checks as MCP tool calls: the schema
preflight, dataset resolution and the cross-domain guard. --dataset requests
a specific dataset; it must belong to the domain and the domain must allow
overrides.

Examples:
  insightmcp query sales "EVALUATE TOPN(10, 'Opportunities')"
  insightmcp query labor "EVALUATE 'Shifts'" --dataset <id> -o json`,
		Args: cobra.ExactArgs(2),
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

			req := dispatcher.Request{Tenant: args[0], Tool: "cli_query", Query: args[1]}
			if dataset != "" {
				req.Args = map[string]any{dispatcher.DatasetOverrideArg: dataset}
			}

			res, err := application.Services().Dispatcher.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != cli.OutputFormatTable {
				return cli.PrintStructured(out, format, res)
			}
			renderRows(out, res.Rows, output.NoHeaders)
			if !output.Quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d rows (request %s)\n", len(res.Rows), res.RequestID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset to query instead of the domain default")
	cli.RegisterOutputFlags(cmd, &output)
	return cmd
}

// renderRows prints query rows as a table whose columns are the sorted union
// of row keys.
func renderRows(out io.Writer, rows []map[string]any, noHeaders bool) {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	if len(columns) == 0 {
		return
	}

	tw := cli.NewPlainTableWriter(out)
	tw.SetHeaders(columns)
	tw.SetNoHeaders(noHeaders)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := row[c]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			} else {
				cells[i] = "-"
			}
		}
		tw.AppendRow(cells)
	}
	tw.Render()
}
