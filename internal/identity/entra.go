package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultAuthority is the Microsoft Entra ID login host.
const DefaultAuthority = "https://login.microsoftonline.com"

// sessionScopes are added to the device flow request so the provider returns
// an id_token (account handle) and a refresh token (silent acquisition).
var sessionScopes = []string{"openid", "profile", "offline_access"}

// EntraConfig configures the Entra ID provider.
type EntraConfig struct {
	// Authority is the login host. Defaults to DefaultAuthority.
	Authority string
	// TenantID is the directory (identity tenant) id.
	TenantID string
	// ClientID is the public client application id.
	ClientID string
	// HTTPClient overrides the client used for provider calls.
	HTTPClient *http.Client
}

// EntraProvider implements Provider against the Microsoft identity platform
// v2.0 endpoints using the device authorization grant and the refresh token
// grant.
type EntraProvider struct {
	clientID   string
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	now        func() time.Time
}

// NewEntraProvider creates a provider for one identity tenant and client.
func NewEntraProvider(cfg EntraConfig) (*EntraProvider, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("identity tenant id is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	authority := strings.TrimSuffix(cfg.Authority, "/")
	if authority == "" {
		authority = DefaultAuthority
	}
	base := fmt.Sprintf("%s/%s/oauth2/v2.0", authority, url.PathEscape(cfg.TenantID))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &EntraProvider{
		clientID: cfg.ClientID,
		endpoint: oauth2.Endpoint{
			AuthURL:       base + "/authorize",
			TokenURL:      base + "/token",
			DeviceAuthURL: base + "/devicecode",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// BeginDeviceFlow implements Provider.
func (p *EntraProvider) BeginDeviceFlow(ctx context.Context, scopes []string, onCodeReady func(DeviceCode)) (*Session, error) {
	cfg := &oauth2.Config{
		ClientID: p.clientID,
		Endpoint: p.endpoint,
		Scopes:   mergeScopes(scopes, sessionScopes),
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}

	code := DeviceCode{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
		ExpiresAt:       da.Expiry,
		Message:         fmt.Sprintf("To sign in, open %s and enter the code %s", da.VerificationURI, da.UserCode),
	}
	if onCodeReady != nil {
		onCodeReady(code)
	}
	logging.Debug("Identity", "Device code issued, waiting for user (expires %s)", da.Expiry.Format(time.RFC3339))

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, err
	}

	accountID, username := accountFromIDToken(tok)
	session := NewSession(accountID, username, tok.RefreshToken, p.now())
	logging.Audit("device_flow_completed", "device authorization completed",
		"account", redact.ID(accountID),
		"session_id", session.ID,
	)
	return session, nil
}

// tokenResponse is the token endpoint's JSON reply.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// AcquireSilently implements Provider using the refresh token grant with an
// explicit scope parameter, which the Microsoft identity platform honours to
// mint a token for a different resource from the same refresh token.
func (p *EntraProvider) AcquireSilently(ctx context.Context, session *Session, scopes []string) (*Token, error) {
	if session == nil {
		return nil, ErrNoRefreshCredential
	}
	rt := session.RefreshCredential()
	if rt == "" {
		return nil, ErrNoRefreshCredential
	}

	form := url.Values{
		"client_id":     {p.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {rt},
		"scope":         {strings.Join(mergeScopes(scopes, []string{"offline_access"}), " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tr tokenResponse
	if jsonErr := json.Unmarshal(body, &tr); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("failed to parse token response: %w", jsonErr)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return nil, &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        tr.Error,
			ErrorDescription: tr.ErrorDescription,
			ErrorURI:         tr.ErrorURI,
		}
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response did not contain an access token")
	}

	session.RotateRefreshCredential(tr.RefreshToken)

	return &Token{
		Bearer: redact.NewToken(tr.AccessToken),
		Expiry: p.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// accountFromIDToken extracts the account handle and login name from the
// id_token. The token was received directly from the token endpoint over TLS,
// so its signature is not re-verified here; it is only used as a label.
func accountFromIDToken(tok *oauth2.Token) (accountID, username string) {
	raw, _ := tok.Extra("id_token").(string)
	if raw != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
			oid, _ := claims["oid"].(string)
			tid, _ := claims["tid"].(string)
			sub, _ := claims["sub"].(string)
			username, _ = claims["preferred_username"].(string)
			switch {
			case oid != "" && tid != "":
				accountID = oid + "." + tid
			case oid != "":
				accountID = oid
			default:
				accountID = sub
			}
		} else {
			logging.Debug("Identity", "Could not parse id_token claims: %v", err)
		}
	}
	if accountID == "" {
		accountID = "anonymous-" + uuid.NewString()
	}
	return accountID, username
}

// mergeScopes returns scopes followed by any extras not already present.
func mergeScopes(scopes, extras []string) []string {
	out := make([]string, 0, len(scopes)+len(extras))
	seen := make(map[string]struct{}, len(scopes)+len(extras))
	for _, list := range [][]string{scopes, extras} {
		for _, s := range list {
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
