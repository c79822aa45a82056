package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestPlainTableWriter_SetHeaders(t *testing.T) {
	tw := NewPlainTableWriter(&bytes.Buffer{})

	tw.SetHeaders([]string{"domain", "Dataset", "STATE"})

	assert.Equal(t, []string{"DOMAIN", "DATASET", "STATE"}, tw.headers)
	assert.Equal(t, []int{6, 7, 5}, tw.columnWidths)
}

func TestPlainTableWriter_AppendRow(t *testing.T) {
	tw := NewPlainTableWriter(&bytes.Buffer{})
	tw.SetHeaders([]string{"A", "B", "C"})

	tw.AppendRow([]string{"only-one"})
	tw.AppendRow([]string{"1", "2", "3", "4"})

	require.Len(t, tw.rows, 2)
	assert.Equal(t, []string{"only-one", "", ""}, tw.rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tw.rows[1])
	assert.Equal(t, 8, tw.columnWidths[0])
}

func TestPlainTableWriter_Render(t *testing.T) {
	tests := []struct {
		name      string
		noHeaders bool
		rows      [][]string
		want      []string
	}{
		{
			name: "headers and rows",
			rows: [][]string{{"sales", "ready"}, {"marketing-eu", "failed"}},
			want: []string{
				"DOMAIN         STATE",
				"sales          ready",
				"marketing-eu   failed",
			},
		},
		{
			name:      "no headers",
			noHeaders: true,
			rows:      [][]string{{"sales", "ready"}},
			want:      []string{"sales   ready"},
		},
		{
			name: "headers only",
			want: []string{"DOMAIN   STATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tw := NewPlainTableWriter(&buf)
			tw.SetHeaders([]string{"domain", "state"})
			tw.SetNoHeaders(tt.noHeaders)
			for _, r := range tt.rows {
				tw.AppendRow(r)
			}

			tw.Render()

			assert.Equal(t, tt.want, splitLines(buf.String()))
		})
	}
}

func TestPlainTableWriter_RenderNothing(t *testing.T) {
	var buf bytes.Buffer
	tw := NewPlainTableWriter(&buf)
	tw.Render()
	assert.Empty(t, buf.String())

	tw.SetHeaders([]string{"A"})
	tw.SetNoHeaders(true)
	tw.Render()
	assert.Empty(t, buf.String())
}

func TestPlainTableWriter_ColoredCellsAlign(t *testing.T) {
	var buf bytes.Buffer
	tw := NewPlainTableWriter(&buf)
	tw.SetHeaders([]string{"state", "domain"})
	tw.AppendRow([]string{text.FgGreen.Sprint("ready"), "sales"})
	tw.AppendRow([]string{"failed", "hr"})

	tw.Render()

	lines := splitLines(buf.String())
	require.Len(t, lines, 3)
	for _, line := range lines {
		plain := text.StripEscape(line)
		require.Greater(t, len(plain), 9)
		assert.Equal(t, byte(' '), plain[8], "misaligned: %q", plain)
		assert.NotEqual(t, byte(' '), plain[9], "misaligned: %q", plain)
	}
}
