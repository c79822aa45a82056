package mock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// jwtHeader is base64url({"alg":"none","typ":"JWT"}). The mock issues unsigned
// id_tokens; production tokens are signed by the provider.
const jwtHeader = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0"

// IdentityServerConfig configures the mock identity provider.
type IdentityServerConfig struct {
	// TenantID is the identity tenant path segment the server answers on.
	TenantID string
	// ClientID is the expected public client id.
	ClientID string
	// UserCode is the code handed to the user. Defaults to "ABCD-EFGH".
	UserCode string
	// TokenLifetime is the expires_in of issued access tokens. Defaults to 1h.
	TokenLifetime time.Duration
	// AccountOID and Username populate the id_token claims.
	AccountOID string
	Username   string
	// DeviceCodeDelay delays the devicecode response.
	DeviceCodeDelay time.Duration
}

// IdentityServer is an httptest-backed mock of the Microsoft identity platform
// v2.0 device code and token endpoints.
type IdentityServer struct {
	*httptest.Server

	cfg IdentityServerConfig

	mu              sync.Mutex
	approved        bool
	declined        bool
	deviceCodeCalls int
	silentCalls     int
	silentScopes    []string
	revokedScopes   map[string]bool
	refreshTokens   map[string]bool
	issued          int
}

// NewIdentityServer starts a mock identity provider.
func NewIdentityServer(cfg IdentityServerConfig) *IdentityServer {
	if cfg.UserCode == "" {
		cfg.UserCode = "ABCD-EFGH"
	}
	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = time.Hour
	}
	if cfg.AccountOID == "" {
		cfg.AccountOID = "00000000-0000-0000-0000-00000000a11c"
	}
	if cfg.Username == "" {
		cfg.Username = "alice@example.com"
	}

	s := &IdentityServer{
		cfg:           cfg,
		revokedScopes: make(map[string]bool),
		refreshTokens: make(map[string]bool),
	}

	mux := http.NewServeMux()
	prefix := "/" + cfg.TenantID + "/oauth2/v2.0"
	mux.HandleFunc(prefix+"/devicecode", s.handleDeviceCode)
	mux.HandleFunc(prefix+"/token", s.handleToken)
	s.Server = httptest.NewServer(mux)
	return s
}

// Approve marks the pending device authorization as completed by the user.
func (s *IdentityServer) Approve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved = true
}

// Decline marks the pending device authorization as declined by the user.
func (s *IdentityServer) Decline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined = true
}

// RevokeConsent makes silent acquisition fail for any request containing scope.
func (s *IdentityServer) RevokeConsent(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedScopes[scope] = true
}

// SilentCalls returns how many refresh token grants were served.
func (s *IdentityServer) SilentCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silentCalls
}

// DeviceCodeCalls returns how many device codes were requested.
func (s *IdentityServer) DeviceCodeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceCodeCalls
}

// LastSilentScopes returns the scope list of the most recent refresh grant.
func (s *IdentityServer) LastSilentScopes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.silentScopes...)
}

func (s *IdentityServer) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != s.cfg.ClientID {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client")
		return
	}
	if s.cfg.DeviceCodeDelay > 0 {
		select {
		case <-time.After(s.cfg.DeviceCodeDelay):
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	s.deviceCodeCalls++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":      "device-code-1",
		"user_code":        s.cfg.UserCode,
		"verification_uri": s.URL + "/devicelogin",
		"expires_in":       900,
		"interval":         1,
		"message":          "To sign in, use a web browser to open the page and enter the code.",
	})
}

func (s *IdentityServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if r.PostForm.Get("client_id") != s.cfg.ClientID {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "urn:ietf:params:oauth:grant-type:device_code":
		s.handleDeviceGrant(w)
	case "refresh_token":
		s.handleRefreshGrant(w, r.PostForm.Get("refresh_token"), strings.Fields(r.PostForm.Get("scope")))
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (s *IdentityServer) handleDeviceGrant(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.declined:
		writeOAuthError(w, http.StatusBadRequest, "authorization_declined", "The user declined the request.")
		return
	case !s.approved:
		writeOAuthError(w, http.StatusBadRequest, "authorization_pending", "")
		return
	}

	rt := s.newRefreshTokenLocked()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.newAccessTokenLocked(),
		"refresh_token": rt,
		"id_token":      s.idToken(),
		"token_type":    "Bearer",
		"expires_in":    int(s.cfg.TokenLifetime.Seconds()),
	})
}

func (s *IdentityServer) handleRefreshGrant(w http.ResponseWriter, rt string, scopes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.silentCalls++
	s.silentScopes = scopes

	if !s.refreshTokens[rt] {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token is not valid")
		return
	}
	for _, sc := range scopes {
		if s.revokedScopes[sc] {
			writeOAuthError(w, http.StatusBadRequest, "consent_required",
				fmt.Sprintf("AADSTS65001: The user has not consented to use %s.", sc))
			return
		}
	}

	delete(s.refreshTokens, rt)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.newAccessTokenLocked(),
		"refresh_token": s.newRefreshTokenLocked(),
		"token_type":    "Bearer",
		"scope":         strings.Join(scopes, " "),
		"expires_in":    int(s.cfg.TokenLifetime.Seconds()),
	})
}

func (s *IdentityServer) newAccessTokenLocked() string {
	s.issued++
	return fmt.Sprintf("access-token-%d", s.issued)
}

func (s *IdentityServer) newRefreshTokenLocked() string {
	s.issued++
	rt := fmt.Sprintf("refresh-token-%d", s.issued)
	s.refreshTokens[rt] = true
	return rt
}

func (s *IdentityServer) idToken() string {
	claims, _ := json.Marshal(map[string]any{
		"iss":                "https://login.example.com/" + s.cfg.TenantID + "/v2.0",
		"aud":                s.cfg.ClientID,
		"oid":                s.cfg.AccountOID,
		"tid":                s.cfg.TenantID,
		"preferred_username": s.cfg.Username,
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	return jwtHeader + "." + base64.RawURLEncoding.EncodeToString(claims) + "."
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
