package dispatcher

import (
	"context"
	"fmt"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/domain"
	"insightmcp/internal/metrics"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"

	"github.com/google/uuid"
)

// DatasetOverrideArg is the tool argument callers use to ask for a specific
// dataset. It is checked against the domain binding and never trusted.
const DatasetOverrideArg = "_datasetId"

// State is a step in the life of one dispatched call.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateTokenPending    State = "token_pending"
	StateReady           State = "ready"
	StateExecuting       State = "executing"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
)

// Request is one tool invocation routed through the dispatcher.
type Request struct {
	Tenant string
	Tool   string
	Query  string
	Args   map[string]any
}

// Result is the outcome of a successful call.
type Result struct {
	RequestID string           `json:"request_id"`
	Rows      []map[string]any `json:"rows"`
}

// Invalidator drops a cached token that the query API rejected.
type Invalidator interface {
	Invalidate(kind api.ScopeKind) error
}

// Config wires a Dispatcher.
type Config struct {
	Registry *domain.Registry
	Tokens   api.TokenSource
	Runner   api.QueryRunner
	Metrics  *metrics.Metrics
	// Invalidator is optional. When set, a token rejected with 401 is dropped
	// from the cache so the caller's next attempt acquires a new one.
	Invalidator Invalidator
}

// Dispatcher is the single path every analytics tool takes to the query API.
type Dispatcher struct {
	registry *domain.Registry
	tokens   api.TokenSource
	runner   api.QueryRunner
	metrics  *metrics.Metrics
	inval    Invalidator
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("domain registry is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("query runner is required")
	}
	return &Dispatcher{
		registry: cfg.Registry,
		tokens:   cfg.Tokens,
		runner:   cfg.Runner,
		metrics:  cfg.Metrics,
		inval:    cfg.Invalidator,
	}, nil
}

// Execute runs req.Query for req.Tenant. The steps are fixed: dataset
// resolution, preflight, primary token, one redacted trace line, then the
// query itself. It never starts a device login and never retries. A 401 from
// either query drops the cached primary token.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	started := time.Now()

	rows, err := d.execute(ctx, requestID, req)
	if api.IsAuthenticationExpired(err) && d.inval != nil {
		if ierr := d.inval.Invalidate(api.ScopePrimary); ierr != nil {
			logging.Warn("Dispatcher", "Could not drop rejected token: %v", ierr)
		}
	}

	outcome := "succeeded"
	if err != nil {
		outcome = outcomeOf(err)
		d.transition(requestID, StateFailed)
		logging.Debug("Dispatcher", "Request %s for tool %s failed: %v", requestID, req.Tool, err)
	} else {
		d.transition(requestID, StateSucceeded)
	}
	d.metrics.RecordQuery(req.Tenant, req.Tool, outcome, time.Since(started).Seconds())

	if err != nil {
		return nil, err
	}
	return &Result{RequestID: requestID, Rows: rows}, nil
}

func (d *Dispatcher) execute(ctx context.Context, requestID string, req Request) ([]map[string]any, error) {
	requested, err := datasetOverride(req.Args)
	if err != nil {
		return nil, err
	}
	target, err := d.registry.Resolve(req.Tenant, requested)
	if err != nil {
		return nil, err
	}

	if err := d.registry.Preflight(ctx, req.Tenant, d.tokens, d.runner); err != nil {
		return nil, err
	}

	d.transition(requestID, StateUnauthenticated)
	d.transition(requestID, StateTokenPending)
	bearer, _, err := d.tokens.EnsureToken(ctx, api.ScopePrimary)
	if err != nil {
		return nil, err
	}
	d.transition(requestID, StateReady)

	logging.Info("Dispatcher", "Dispatching query request_id=%s tool=%s domain=%s dataset=%s workspace=%s",
		requestID, req.Tool, req.Tenant, redact.ID(target.DatasetID), redact.ID(target.WorkspaceID))

	d.transition(requestID, StateExecuting)
	result, err := d.runner.ExecuteQuery(ctx, target.WorkspaceID, target.DatasetID, req.Query, bearer)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Rows == nil {
		return []map[string]any{}, nil
	}
	return result.Rows, nil
}

func (d *Dispatcher) transition(requestID string, state State) {
	d.metrics.RecordDispatchState(string(state))
	logging.Debug("Dispatcher", "Request %s -> %s", requestID, state)
}

// datasetOverride extracts the caller's dataset request, if any.
func datasetOverride(args map[string]any) (string, error) {
	raw, ok := args[DatasetOverrideArg]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", DatasetOverrideArg)
	}
	return s, nil
}

func outcomeOf(err error) string {
	switch {
	case api.IsCrossDomainViolation(err):
		return "domain_violation"
	case api.IsSchemaValidationFailed(err):
		return "schema_failed"
	case api.IsUnknownDomain(err):
		return "unknown_domain"
	case api.IsAuthError(err):
		return "auth_error"
	case api.IsQueryFailed(err):
		return "query_failed"
	default:
		return "error"
	}
}
