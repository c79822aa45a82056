package deviceauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/identity"
	"insightmcp/internal/metrics"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"
)

const (
	// DefaultCodeTimeout is the ceiling for receiving a user code from the
	// identity provider.
	DefaultCodeTimeout = 20 * time.Second
)

// SessionWarmer receives the session of a completed flow and eagerly fetches
// its tokens. The token acquirer implements it.
type SessionWarmer interface {
	SetSession(session *identity.Session)
	WarmUp(ctx context.Context) map[api.ScopeKind]error
}

// Status is the observable state of the device flow.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusFailed   Status = "failed"
	StatusComplete Status = "complete"
)

// StartResult is returned by Start once a user code is available.
type StartResult struct {
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Message         string `json:"message"`
	// AlreadyPending is true when an existing flow's code was returned.
	AlreadyPending bool `json:"already_pending"`
	// Finished is true when the existing flow has ended but CheckStatus has
	// not reported it yet. No new flow is started until it has.
	Finished bool `json:"finished,omitempty"`
}

// StatusResult is returned by CheckStatus.
type StatusResult struct {
	Status          Status `json:"status"`
	UserCode        string `json:"user_code,omitempty"`
	VerificationURI string `json:"verification_uri,omitempty"`
	Reason          string `json:"reason,omitempty"`
	// Account is the redacted account handle of a completed session.
	Account  string `json:"account,omitempty"`
	Username string `json:"username,omitempty"`
	// Tokens maps each scope kind to "ready" or the reason it is missing.
	Tokens map[string]string `json:"tokens,omitempty"`
}

// Config configures an Authenticator.
type Config struct {
	Provider identity.Provider
	Warmer   SessionWarmer
	// Scopes are requested during the device flow itself.
	Scopes []string
	// CodeTimeout bounds how long Start waits for the user code.
	// Defaults to DefaultCodeTimeout.
	CodeTimeout time.Duration
	Metrics     *metrics.Metrics
}

// pendingAuthorization is the state of one in-flight device flow.
type pendingAuthorization struct {
	code      identity.DeviceCode
	codeReady chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	startedAt time.Time

	// Set before done is closed.
	err     *api.DeviceFlowFailedError
	session *identity.Session
	tokens  map[api.ScopeKind]error
}

func (p *pendingAuthorization) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *pendingAuthorization) hasCode() bool {
	select {
	case <-p.codeReady:
		return true
	default:
		return false
	}
}

// Authenticator drives the device authorization grant without blocking its
// callers: Start returns as soon as a user code is known while the wait for
// the user continues in the background, and CheckStatus reports progress.
// At most one flow exists at a time.
type Authenticator struct {
	provider    identity.Provider
	warmer      SessionWarmer
	scopes      []string
	codeTimeout time.Duration
	metrics     *metrics.Metrics

	mu      sync.Mutex
	pending *pendingAuthorization
}

// New creates an Authenticator.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if cfg.Warmer == nil {
		return nil, fmt.Errorf("session warmer is required")
	}
	timeout := cfg.CodeTimeout
	if timeout <= 0 {
		timeout = DefaultCodeTimeout
	}
	return &Authenticator{
		provider:    cfg.Provider,
		warmer:      cfg.Warmer,
		scopes:      append([]string(nil), cfg.Scopes...),
		codeTimeout: timeout,
		metrics:     cfg.Metrics,
	}, nil
}

// Start begins a device flow, or joins the one already in flight, and waits
// until the user code is available. If no code arrives within the code
// timeout the flow is abandoned and a DeviceFlowFailedError is returned.
// A flow that has ended is kept until CheckStatus reports its outcome.
func (a *Authenticator) Start(ctx context.Context) (*StartResult, error) {
	a.mu.Lock()
	p := a.pending
	joined := p != nil
	if !joined {
		p = a.launchLocked()
	}
	a.mu.Unlock()

	if joined && p.hasCode() {
		if p.isDone() {
			return finishedResult(p.code), nil
		}
		return startResult(p.code, true), nil
	}
	if joined && p.isDone() {
		a.forget(p)
		return nil, noCodeError(p)
	}

	remaining := a.codeTimeout - time.Since(p.startedAt)
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-p.codeReady:
		return startResult(p.code, joined), nil
	case <-p.done:
		if p.hasCode() {
			// Finished quickly; CheckStatus reports the outcome.
			return startResult(p.code, joined), nil
		}
		a.forget(p)
		return nil, noCodeError(p)
	case <-timer.C:
		err := &api.DeviceFlowFailedError{
			Reason: fmt.Sprintf("failed to obtain a device code within %s", a.codeTimeout),
		}
		a.abandon(p)
		a.metrics.RecordDeviceFlow("code_timeout")
		logging.Warn("DeviceAuth", "No device code within %s, abandoning flow", a.codeTimeout)
		return nil, err
	case <-ctx.Done():
		// The caller gave up; the flow keeps running for the next Start.
		return nil, ctx.Err()
	}
}

// launchLocked starts a new background flow. a.mu must be held.
func (a *Authenticator) launchLocked() *pendingAuthorization {
	// The flow outlives the request that started it.
	bgCtx, cancel := context.WithCancel(context.Background())
	p := &pendingAuthorization{
		codeReady: make(chan struct{}),
		done:      make(chan struct{}),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	a.pending = p
	a.metrics.RecordDeviceFlow("started")
	logging.Info("DeviceAuth", "Starting device authorization flow")

	go a.run(bgCtx, p)
	return p
}

func (a *Authenticator) run(ctx context.Context, p *pendingAuthorization) {
	defer close(p.done)
	defer p.cancel()

	var once sync.Once
	session, err := a.provider.BeginDeviceFlow(ctx, a.scopes, func(code identity.DeviceCode) {
		once.Do(func() {
			p.code = code
			close(p.codeReady)
		})
	})
	if err != nil {
		p.err = identity.ClassifyDeviceFlowError(err)
		a.metrics.RecordDeviceFlow("failed")
		logging.Warn("DeviceAuth", "Device authorization failed: %s", p.err.Reason)
		return
	}

	a.warmer.SetSession(session)
	p.tokens = a.warmer.WarmUp(ctx)
	p.session = session
	a.metrics.RecordDeviceFlow("complete")
	logging.Info("DeviceAuth", "Device authorization complete for account %s", redact.ID(session.AccountID))
}

// CheckStatus reports the state of the current flow. Terminal states
// (failed, complete) are reported once; the flow is then forgotten.
func (a *Authenticator) CheckStatus(ctx context.Context) *StatusResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending
	if p == nil {
		return &StatusResult{Status: StatusNone}
	}

	if !p.isDone() {
		res := &StatusResult{Status: StatusPending}
		if p.hasCode() {
			res.UserCode = p.code.UserCode
			res.VerificationURI = p.code.VerificationURI
		}
		return res
	}

	a.pending = nil
	if p.err != nil {
		return &StatusResult{Status: StatusFailed, Reason: p.err.Reason}
	}

	res := &StatusResult{
		Status:   StatusComplete,
		Account:  redact.ID(p.session.AccountID),
		Username: p.session.Username,
		Tokens:   make(map[string]string, len(p.tokens)),
	}
	for kind, err := range p.tokens {
		if err != nil {
			res.Tokens[kind.String()] = err.Error()
		} else {
			res.Tokens[kind.String()] = "ready"
		}
	}
	return res
}

// Close cancels any in-flight flow.
func (a *Authenticator) Close() {
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()
	if p != nil {
		p.cancel()
	}
}

// abandon cancels p and forgets it if it is still the current flow.
func (a *Authenticator) abandon(p *pendingAuthorization) {
	p.cancel()
	a.forget(p)
}

func (a *Authenticator) forget(p *pendingAuthorization) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == p {
		a.pending = nil
	}
}

func startResult(code identity.DeviceCode, already bool) *StartResult {
	msg := code.Message
	if msg == "" {
		msg = fmt.Sprintf("To sign in, open %s and enter the code %s", code.VerificationURI, code.UserCode)
	}
	return &StartResult{
		UserCode:        code.UserCode,
		VerificationURI: code.VerificationURI,
		Message:         msg,
		AlreadyPending:  already,
	}
}

// noCodeError explains why a flow ended before delivering a user code.
func noCodeError(p *pendingAuthorization) error {
	if p.err != nil {
		return p.err
	}
	return &api.DeviceFlowFailedError{Reason: "identity provider did not return a device code"}
}

func finishedResult(code identity.DeviceCode) *StartResult {
	return &StartResult{
		UserCode:        code.UserCode,
		VerificationURI: code.VerificationURI,
		Message:         "The previous sign-in has already ended. Call check_login_status to read its outcome before starting another.",
		AlreadyPending:  true,
		Finished:        true,
	}
}
