package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates s. The empty string selects the table format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputFormatTable:
		return OutputFormatTable, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatYAML:
		return OutputFormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (valid: table, json, yaml)", s)
	}
}

// PrintStructured writes v as JSON or YAML. It returns an error for the
// table format, which callers render themselves.
func PrintStructured(w io.Writer, format OutputFormat, v any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}

// IsTerminal reports whether w is a character device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// FormatState renders a state value, colored when color is true.
func FormatState(state string, color bool) string {
	if state == "" {
		return "-"
	}
	if !color {
		return state
	}
	switch strings.ToLower(state) {
	case "ready", "complete", "passed", "signed in", "cached":
		return text.FgGreen.Sprint(state)
	case "pending", "not run", "skipped":
		return text.FgYellow.Sprint(state)
	case "failed", "missing", "signed out", "expired":
		return text.FgRed.Sprint(state)
	default:
		return state
	}
}

// Success formats a success line.
func Success(msg string) string {
	return text.FgGreen.Sprint("✓ ") + msg
}

// Warning formats a warning line.
func Warning(msg string) string {
	return text.FgYellow.Sprint("⚠ ") + msg
}
