package redact

import "strings"

// maxVisibleIDRunes caps how much of an identifier survives redaction.
const maxVisibleIDRunes = 8

// ID shortens a dataset, workspace or account identifier for logs and
// user-facing messages. At most half of the identifier (and never more than
// eight characters) is kept, followed by "...". The full value is never returned.
//
// Whitespace is collapsed first so that pasted ids with trailing newlines do
// not produce multi-line log entries.
func ID(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return "<none>"
	}

	runes := []rune(s)
	visible := len(runes) / 2
	if visible > maxVisibleIDRunes {
		visible = maxVisibleIDRunes
	}
	if visible == 0 {
		return "..."
	}
	return string(runes[:visible]) + "..."
}

// Truncate shortens free text (for example a provider error description) to
// maxLen runes, collapsing whitespace into single spaces and appending "..."
// when truncated. maxLen values below 4 are clamped to 4.
func Truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
