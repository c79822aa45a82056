package acquirer

import (
	"sync"

	"insightmcp/internal/identity"
)

// AuthState holds the one active session of this process. It is created by
// the caller and injected into the Acquirer, so independent instances (for
// example in parallel tests) never share credentials.
type AuthState struct {
	mu      sync.RWMutex
	session *identity.Session
}

// NewAuthState creates an empty, unauthenticated state.
func NewAuthState() *AuthState {
	return &AuthState{}
}

// Session returns the current session or nil.
func (s *AuthState) Session() *identity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetSession replaces the current session.
func (s *AuthState) SetSession(session *identity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Clear drops the current session and returns the one that was dropped.
func (s *AuthState) Clear() *identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.session
	s.session = nil
	return prev
}
