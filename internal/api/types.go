package api

import (
	"context"
	"time"

	"insightmcp/pkg/redact"
)

// ScopeKind identifies one of the three scoped tokens held per session.
type ScopeKind int

const (
	// ScopePrimary is the BI query scope. Most tools require it.
	ScopePrimary ScopeKind = iota
	// ScopeProfile is the user profile scope (identity display, Graph /me).
	ScopeProfile
	// ScopeDelegatedAPI is the delegated downstream API scope.
	ScopeDelegatedAPI
)

// AllScopeKinds lists the scope kinds in acquisition order.
// Primary comes first because it serves the largest share of tools.
var AllScopeKinds = []ScopeKind{ScopePrimary, ScopeProfile, ScopeDelegatedAPI}

// String returns the stable name used in logs, metrics and error messages.
func (k ScopeKind) String() string {
	switch k {
	case ScopePrimary:
		return "primary"
	case ScopeProfile:
		return "profile"
	case ScopeDelegatedAPI:
		return "delegated_api"
	default:
		return "unknown"
	}
}

// ParseScopeKind converts a stable name back into a ScopeKind.
func ParseScopeKind(s string) (ScopeKind, bool) {
	for _, k := range AllScopeKinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// TokenSource yields a valid bearer for a scope kind. The token acquirer
// implements it; the dispatcher and the preflight check consume it.
type TokenSource interface {
	EnsureToken(ctx context.Context, kind ScopeKind) (redact.Token, time.Time, error)
}

// QueryRunner executes a query against one dataset of one workspace.
// The BI query client implements it.
type QueryRunner interface {
	ExecuteQuery(ctx context.Context, workspaceID, datasetID, query string, bearer redact.Token) (*QueryResult, error)
}

// QueryResult is the row set returned by the BI query API, passed through verbatim.
type QueryResult struct {
	Rows []map[string]any `json:"rows"`
}
