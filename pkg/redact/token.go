package redact

// placeholder stands in for a secret wherever a Token is rendered.
const placeholder = "[REDACTED]"

// Token carries a bearer credential. Every rendering of it (fmt verbs,
// JSON, text encoding) shows a placeholder; only Value exposes the secret.
//
//	tok := redact.NewToken(accessToken)
//	logging.Debug("Auth", "got %v", tok) // got [REDACTED]
type Token struct {
	value string
}

// NewToken wraps value.
func NewToken(value string) Token {
	return Token{value: value}
}

// Value is the raw credential, for the Authorization header and nothing else.
func (t Token) Value() string {
	return t.value
}

func (t Token) String() string {
	return placeholder
}

func (t Token) GoString() string {
	return "redact.Token{" + placeholder + "}"
}

// IsEmpty reports whether no credential is held.
func (t Token) IsEmpty() bool {
	return t.value == ""
}

// Equal compares two credentials without rendering either.
func (t Token) Equal(other Token) bool {
	return t.value == other.value
}

func (t Token) MarshalText() ([]byte, error) {
	return []byte(placeholder), nil
}

func (t Token) MarshalJSON() ([]byte, error) {
	return []byte(`"` + placeholder + `"`), nil
}
