package acquirer

import (
	"context"
	"fmt"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/identity"
	"insightmcp/internal/metrics"
	"insightmcp/internal/tokencache"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"

	"golang.org/x/sync/singleflight"
)

// Config configures an Acquirer.
type Config struct {
	// TenantID and ClientID address the token cache slots.
	TenantID string
	ClientID string

	// Scopes maps each scope kind to its fixed scope set.
	Scopes map[api.ScopeKind][]string

	Provider identity.Provider
	Cache    *tokencache.Cache
	Metrics  *metrics.Metrics
}

// Acquirer obtains the three scoped tokens of the current session,
// cache-first, and tracks each token's expiry independently.
type Acquirer struct {
	tenantID string
	clientID string
	scopes   map[api.ScopeKind][]string
	provider identity.Provider
	cache    *tokencache.Cache
	metrics  *metrics.Metrics
	state    *AuthState

	// group collapses concurrent cache misses for the same kind into one
	// provider call.
	group singleflight.Group
}

// New creates an Acquirer bound to state.
func New(cfg Config, state *AuthState) (*Acquirer, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("token cache is required")
	}
	if state == nil {
		return nil, fmt.Errorf("auth state is required")
	}
	scopes := make(map[api.ScopeKind][]string, len(api.AllScopeKinds))
	for _, kind := range api.AllScopeKinds {
		s := cfg.Scopes[kind]
		if len(s) == 0 {
			return nil, fmt.Errorf("no scopes configured for %s token", kind)
		}
		scopes[kind] = append([]string(nil), s...)
	}

	return &Acquirer{
		tenantID: cfg.TenantID,
		clientID: cfg.ClientID,
		scopes:   scopes,
		provider: cfg.Provider,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		state:    state,
	}, nil
}

// Scopes returns the scope set of a kind.
func (a *Acquirer) Scopes(kind api.ScopeKind) []string {
	return append([]string(nil), a.scopes[kind]...)
}

// EnsureToken returns a valid bearer for kind and its expiry.
//
// A live cache entry is returned as is, provided it belongs to the current
// session's account when one is signed in. Otherwise the session is used
// to acquire a token silently, which is written through to the cache. Without
// a session the call fails with AuthenticationRequiredError; it never starts
// an interactive login. Silent failures are reported as TokenAcquisitionError
// naming the kind.
func (a *Acquirer) EnsureToken(ctx context.Context, kind api.ScopeKind) (redact.Token, time.Time, error) {
	scopes, ok := a.scopes[kind]
	if !ok {
		return redact.Token{}, time.Time{}, fmt.Errorf("unknown scope kind %d", kind)
	}

	session := a.state.Session()
	if entry := a.cachedFor(session, scopes); entry != nil {
		a.metrics.RecordCacheLookup(kind.String(), true)
		return entry.Token, entry.Expiry, nil
	}
	a.metrics.RecordCacheLookup(kind.String(), false)

	if session == nil {
		return redact.Token{}, time.Time{}, &api.AuthenticationRequiredError{Kind: kind}
	}

	v, err, shared := a.group.Do(kind.String(), func() (interface{}, error) {
		// Another caller may have filled the slot while we waited.
		if entry := a.cachedFor(session, scopes); entry != nil {
			return &identity.Token{Bearer: entry.Token, Expiry: entry.Expiry}, nil
		}
		return a.acquire(ctx, session, kind, scopes)
	})
	if err != nil {
		return redact.Token{}, time.Time{}, err
	}
	if shared {
		logging.Debug("Acquirer", "Shared in-flight %s token acquisition", kind)
	}

	tok := v.(*identity.Token)
	return tok.Bearer, tok.Expiry, nil
}

// cachedFor returns the live cache entry for scopes, or nil when there is none
// or it was issued to an account other than session's.
func (a *Acquirer) cachedFor(session *identity.Session, scopes []string) *tokencache.Entry {
	entry := a.cache.Get(a.tenantID, a.clientID, scopes)
	if entry == nil {
		return nil
	}
	if session != nil && entry.Account != session.AccountID {
		logging.Debug("Acquirer", "Ignoring cached token issued to another account")
		return nil
	}
	return entry
}

func (a *Acquirer) acquire(ctx context.Context, session *identity.Session, kind api.ScopeKind, scopes []string) (*identity.Token, error) {
	logging.Debug("Acquirer", "Acquiring %s token silently for session %s", kind, session.ID)

	tok, err := a.provider.AcquireSilently(ctx, session, scopes)
	if err != nil {
		a.metrics.RecordTokenAcquisition(kind.String(), "failed")
		if identity.IsInteractionRequired(err) {
			logging.Warn("Acquirer", "%s token needs the user to sign in again: %v", kind, err)
		}
		return nil, &api.TokenAcquisitionError{Kind: kind, Err: err}
	}
	a.metrics.RecordTokenAcquisition(kind.String(), "succeeded")

	if err := a.cache.Put(a.tenantID, a.clientID, scopes, tok.Bearer, session.AccountID, tok.Expiry); err != nil {
		// The token is still good for this call; only persistence failed.
		logging.Warn("Acquirer", "Could not cache %s token: %v", kind, err)
	}
	return tok, nil
}

// WarmUp acquires all three tokens in order Primary, Profile, DelegatedApi.
// Each kind succeeds or fails on its own; failures are logged and returned
// per kind, never aborting the remaining kinds.
func (a *Acquirer) WarmUp(ctx context.Context) map[api.ScopeKind]error {
	results := make(map[api.ScopeKind]error, len(api.AllScopeKinds))
	for _, kind := range api.AllScopeKinds {
		_, expiry, err := a.EnsureToken(ctx, kind)
		results[kind] = err
		if err != nil {
			logging.Error("Acquirer", err, "Warm-up failed for %s token", kind)
			continue
		}
		logging.Debug("Acquirer", "%s token ready until %s", kind, expiry.Format(time.RFC3339))
	}
	return results
}

// SetSession installs a freshly authenticated session.
func (a *Acquirer) SetSession(session *identity.Session) {
	a.state.SetSession(session)
}

// HasSession reports whether a session is active.
func (a *Acquirer) HasSession() bool {
	return a.state.Session() != nil
}

// Session returns the active session or nil.
func (a *Acquirer) Session() *identity.Session {
	return a.state.Session()
}

// Logout drops the session and every cached token.
func (a *Acquirer) Logout() error {
	prev := a.state.Clear()
	if prev != nil {
		logging.Audit("logout", "session ended", "session_id", prev.ID, "account", redact.ID(prev.AccountID))
	}
	return a.cache.Clear()
}

// Invalidate drops the cached token of kind so the next EnsureToken acquires
// a fresh one. Used when the query API rejects a bearer before its expiry.
func (a *Acquirer) Invalidate(kind api.ScopeKind) error {
	scopes, ok := a.scopes[kind]
	if !ok {
		return fmt.Errorf("unknown scope kind %d", kind)
	}
	logging.Info("Acquirer", "Invalidating rejected %s token", kind)
	return a.cache.Delete(a.tenantID, a.clientID, scopes)
}

// KindStatus describes one scope kind's token without exposing it.
type KindStatus struct {
	Kind   api.ScopeKind `json:"-"`
	Name   string        `json:"kind"`
	Cached bool          `json:"cached"`
	Expiry *time.Time    `json:"expiry,omitempty"`
}

// Status reports the cache state of each kind, in acquisition order.
func (a *Acquirer) Status() []KindStatus {
	out := make([]KindStatus, 0, len(api.AllScopeKinds))
	for _, kind := range api.AllScopeKinds {
		st := KindStatus{Kind: kind, Name: kind.String()}
		if entry := a.cache.Get(a.tenantID, a.clientID, a.scopes[kind]); entry != nil {
			exp := entry.Expiry
			st.Cached = true
			st.Expiry = &exp
		}
		out = append(out, st)
	}
	return out
}
