package cli

import (
	"github.com/spf13/cobra"
)

// OutputFlags holds the output flag values shared by commands that print
// structured results.
type OutputFlags struct {
	// OutputFormat is one of table, json or yaml.
	OutputFormat string
	// NoHeaders suppresses the header row in table output.
	NoHeaders bool
	// Quiet suppresses progress indicators and non-essential output.
	Quiet bool
}

// RegisterOutputFlags registers --output/-o, --no-headers and --quiet/-q on cmd.
func RegisterOutputFlags(cmd *cobra.Command, flags *OutputFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", string(OutputFormatTable), "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
}

// Format validates and returns the selected output format.
func (f *OutputFlags) Format() (OutputFormat, error) {
	return ParseOutputFormat(f.OutputFormat)
}
