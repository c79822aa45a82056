package redact

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_NeverPrintsValue(t *testing.T) {
	tok := NewToken("super-secret-bearer")

	assert.Equal(t, "super-secret-bearer", tok.Value())
	assert.Equal(t, "[REDACTED]", tok.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", tok))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", tok))
	assert.NotContains(t, fmt.Sprintf("%#v", tok), "super-secret")

	data, err := json.Marshal(struct {
		Token Token `json:"token"`
	}{Token: tok})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(data))

	text, err := tok.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))
	assert.Equal(t, "redact.Token{[REDACTED]}", tok.GoString())
}

func TestToken_EmptyAndEqual(t *testing.T) {
	assert.True(t, NewToken("").IsEmpty())
	assert.False(t, NewToken("x").IsEmpty())
	assert.True(t, NewToken("a").Equal(NewToken("a")))
	assert.False(t, NewToken("a").Equal(NewToken("b")))
}

func TestID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "<none>"},
		{"single rune", "a", "..."},
		{"short", "abcd", "ab..."},
		{"guid", "6f1c2d3e-aaaa-bbbb-cccc-0123456789ab", "6f1c2d3e..."},
		{"whitespace", " 6f1c2d3e-aaaa\n", "6f1c2d..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ID(tc.in)
			assert.Equal(t, tc.want, got)
			if tc.in != "" {
				assert.NotEqual(t, strings.TrimSpace(tc.in), got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello world", Truncate("hello\n  world", 60))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "a...", Truncate("abcdefgh", 1))
}
