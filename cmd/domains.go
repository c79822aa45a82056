package cmd

import (
	"strconv"
	"strings"

	"insightmcp/internal/api"
	"insightmcp/internal/cli"
	"insightmcp/internal/config"
	"insightmcp/pkg/redact"

	"github.com/spf13/cobra"
)

// domainInfo is one row of domains output.
type domainInfo struct {
	Name           string   `json:"name" yaml:"name"`
	DefaultDataset string   `json:"defaultDataset" yaml:"defaultDataset"`
	Datasets       int      `json:"datasets" yaml:"datasets"`
	AllowOverride  bool     `json:"allowOverride" yaml:"allowOverride"`
	RequiredTables []string `json:"requiredTables,omitempty" yaml:"requiredTables,omitempty"`
	Tools          []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// preflightInfo is one row of domains check output.
type preflightInfo struct {
	Name   string `json:"name" yaml:"name"`
	State  string `json:"state" yaml:"state"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// newDomainsCmd creates the domains command group.
func newDomainsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "domains",
		Aliases: []string{"domain"},
		Short:   "Inspect domain bindings",
		Long: `Inspect the business domains and the datasets they are bound to.

Dataset identifiers are shown redacted.

Examples:
  insightmcp domains list              # Show every domain binding
  insightmcp domains check             # Run the schema preflight for all domains
  insightmcp domains check sales       # Run it for one domain`,
	}

	cmd.AddCommand(newDomainsListCmd(flags), newDomainsCheckCmd(flags))
	return cmd
}

func newDomainsListCmd(flags *rootFlags) *cobra.Command {
	var output cli.OutputFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List domain bindings",
		Args:  cobra.NoArgs,
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

			rows := describeDomains(application.Settings().Domains)

			out := cmd.OutOrStdout()
			if format != cli.OutputFormatTable {
				return cli.PrintStructured(out, format, rows)
			}

			tw := cli.NewPlainTableWriter(out)
			tw.SetHeaders([]string{"domain", "dataset", "datasets", "override", "tables", "tools"})
			tw.SetNoHeaders(output.NoHeaders)
			for _, r := range rows {
				tw.AppendRow([]string{
					r.Name,
					r.DefaultDataset,
					strconv.Itoa(r.Datasets),
					strconv.FormatBool(r.AllowOverride),
					joinOrDash(r.RequiredTables),
					joinOrDash(r.Tools),
				})
			}
			tw.Render()
			return nil
		},
	}

	cli.RegisterOutputFlags(cmd, &output)
	return cmd
}

func newDomainsCheckCmd(flags *rootFlags) *cobra.Command {
	var output cli.OutputFlags

	cmd := &cobra.Command{
		Use:   "check [domain...]",
		Short: "Run the schema preflight",
		Long: `Run the schema preflight for the named domains, or all of them.

The preflight counts rows in each required table of the domain's default
dataset. It needs a cached primary token; sign in first.

Exit codes:
  0  every checked domain passed or has no required tables
  2  no usable token
  4  a domain failed its preflight or is unknown`,
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
			s := application.Services()

			tenants := args
			if len(tenants) == 0 {
				tenants = s.Registry.Tenants()
			}

			var (
				rows     []preflightInfo
				firstErr error
			)
			for _, tenant := range tenants {
				b, ok := s.Registry.Binding(tenant)
				if !ok {
					return &api.UnknownDomainError{Tenant: tenant}
				}
				row := preflightInfo{Name: tenant, State: "passed"}
				if len(b.RequiredTables) == 0 {
					row.State = "skipped"
				}
				if err := s.Registry.Preflight(cmd.Context(), tenant, s.Acquirer, s.QueryClient); err != nil {
					if api.IsAuthError(err) {
						return err
					}
					row.State = "failed"
					row.Reason = err.Error()
					if firstErr == nil {
						firstErr = err
					}
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			if format != cli.OutputFormatTable {
				if err := cli.PrintStructured(out, format, rows); err != nil {
					return err
				}
				return firstErr
			}

			color := cli.IsTerminal(out)
			tw := cli.NewPlainTableWriter(out)
			tw.SetHeaders([]string{"domain", "preflight", "reason"})
			tw.SetNoHeaders(output.NoHeaders)
			for _, r := range rows {
				tw.AppendRow([]string{r.Name, cli.FormatState(r.State, color), r.Reason})
			}
			tw.Render()
			return firstErr
		},
	}

	cli.RegisterOutputFlags(cmd, &output)
	return cmd
}

func describeDomains(domains []config.DomainConfig) []domainInfo {
	rows := make([]domainInfo, 0, len(domains))
	for _, d := range domains {
		info := domainInfo{
			Name:           d.Name,
			Datasets:       len(d.Datasets),
			AllowOverride:  d.AllowOverride,
			RequiredTables: d.RequiredTables,
		}
		if len(d.Datasets) > 0 {
			info.DefaultDataset = redact.ID(d.Datasets[0].ID)
		}
		for _, t := range d.Tools {
			info.Tools = append(info.Tools, t.Name)
		}
		rows = append(rows, info)
	}
	return rows
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
