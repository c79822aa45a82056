// Package oauth parses OAuth 2.0 bearer challenges (RFC 6750) returned by
// protected resources in the WWW-Authenticate header.
//
// The BI query client uses it to explain why a bearer was rejected:
//
//	if c := oauth.ChallengeFromResponse(resp); c != nil {
//		reason = c.Reason()
//	}
package oauth
