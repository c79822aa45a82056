package identity

import (
	"context"
	"sync"
	"time"

	"insightmcp/pkg/redact"

	"github.com/google/uuid"
)

// DeviceCode carries what the user needs to complete a device authorization,
// under stable names independent of the provider's wire format.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
	// Message is the provider's ready-made instruction text, if any.
	Message   string
	ExpiresAt time.Time
}

// Token is one access token together with its absolute expiry.
type Token struct {
	Bearer redact.Token
	Expiry time.Time
}

// Session represents one authenticated end user. It lives only in memory: the
// refresh credential is never serialized.
type Session struct {
	// ID identifies this session instance in logs.
	ID string
	// AccountID is the provider's opaque account handle.
	AccountID string
	// Username is the display login name, when the provider returned one.
	Username  string
	CreatedAt time.Time

	mu           sync.Mutex
	refreshToken string
}

// NewSession creates a session for an authenticated account.
func NewSession(accountID, username, refreshToken string, createdAt time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Username:     username,
		CreatedAt:    createdAt,
		refreshToken: refreshToken,
	}
}

// RefreshCredential returns the credential used for silent acquisition.
func (s *Session) RefreshCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// RotateRefreshCredential replaces the refresh credential when the provider
// issues a new one. Empty values are ignored.
func (s *Session) RotateRefreshCredential(rt string) {
	if rt == "" {
		return
	}
	s.mu.Lock()
	s.refreshToken = rt
	s.mu.Unlock()
}

// Provider is the identity provider boundary.
type Provider interface {
	// BeginDeviceFlow requests a device code, hands it to onCodeReady as soon
	// as it is known, then blocks until the user completes or abandons the
	// authorization. Callers run it in the background.
	BeginDeviceFlow(ctx context.Context, scopes []string, onCodeReady func(DeviceCode)) (*Session, error)

	// AcquireSilently obtains a token for exactly the given scopes using the
	// session's credential, without user interaction.
	AcquireSilently(ctx context.Context, session *Session, scopes []string) (*Token, error)
}
