package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var paramRegex = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"`)

// Challenge is a parsed WWW-Authenticate challenge.
type Challenge struct {
	Scheme           string
	Realm            string
	Scope            string
	Error            string
	ErrorDescription string
	// AuthorizationURI is the authorization_uri parameter some identity
	// platforms add to point at the authority that issues tokens.
	AuthorizationURI string
}

// ParseChallenge parses a WWW-Authenticate header value.
//
// Example headers:
//
//	Bearer realm="", error="invalid_token"
//	Bearer authorization_uri="https://login.microsoftonline.com/common/oauth2/authorize", error="invalid_token", error_description="The access token expired"
func ParseChallenge(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	parts := strings.SplitN(header, " ", 2)
	c := &Challenge{Scheme: parts[0]}
	if len(parts) == 1 {
		return c, nil
	}

	for _, m := range paramRegex.FindAllStringSubmatch(parts[1], -1) {
		switch strings.ToLower(m[1]) {
		case "realm":
			c.Realm = m[2]
		case "scope":
			c.Scope = m[2]
		case "error":
			c.Error = m[2]
		case "error_description":
			c.ErrorDescription = m[2]
		case "authorization_uri":
			c.AuthorizationURI = m[2]
		}
	}
	return c, nil
}

// ChallengeFromResponse extracts the challenge from a 401 response. It
// returns nil for other statuses or when the header is absent.
func ChallengeFromResponse(resp *http.Response) *Challenge {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return nil
	}
	c, err := ParseChallenge(resp.Header.Get("WWW-Authenticate"))
	if err != nil {
		return nil
	}
	return c
}

// Reason summarizes the challenge for an error message: the description
// when present, else the error code.
func (c *Challenge) Reason() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Error != "" && c.ErrorDescription != "":
		return c.Error + ": " + c.ErrorDescription
	case c.Error != "":
		return c.Error
	default:
		return c.ErrorDescription
	}
}
