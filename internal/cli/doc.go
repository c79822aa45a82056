// Package cli provides output helpers shared by the insightmcp commands.
//
// Commands render their results in one of three formats:
//   - table: kubectl-style plain columns, suitable for grep and awk
//   - json: indented JSON for scripts
//   - yaml: YAML for humans who prefer it
//
// PlainTableWriter renders the table format. State values can be colored
// with FormatState when writing to a terminal. Spinner wraps a progress
// indicator that stays silent in quiet mode or when output is not a
// terminal.
package cli
