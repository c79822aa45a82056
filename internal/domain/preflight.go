package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"insightmcp/internal/api"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"
)

type preflightState struct {
	mu   sync.Mutex
	done bool
	err  error
}

// Preflight confirms once per process that the tenant's default dataset
// exposes the tables its tools expect. Concurrent first calls share a single
// query. A schema failure is remembered and returned on every later call.
// Authentication, throttling and server failures are not remembered, so the
// check runs again on the next call.
func (r *Registry) Preflight(ctx context.Context, tenant string, tokens api.TokenSource, runner api.QueryRunner) error {
	b, ok := r.bindings[tenant]
	if !ok {
		return &api.UnknownDomainError{Tenant: tenant}
	}

	st := r.preflights[tenant]
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return st.err
	}

	if len(b.RequiredTables) == 0 {
		st.done = true
		r.metrics.RecordPreflight(tenant, "skipped")
		return nil
	}

	err := r.runPreflight(ctx, b, tokens, runner)
	switch {
	case err == nil:
		st.done = true
		r.metrics.RecordPreflight(tenant, "passed")
		logging.Info("Domain", "Preflight passed for domain %s (%d tables)", tenant, len(b.RequiredTables))
		return nil
	case isSchemaFailure(err):
		st.done = true
		st.err = &api.SchemaValidationFailedError{
			Tenant:         tenant,
			DatasetID:      redact.ID(b.Default().ID),
			ExpectedTables: append([]string(nil), b.RequiredTables...),
			Err:            err,
		}
		r.metrics.RecordPreflight(tenant, "schema_failed")
		logging.Error("Domain", err, "Preflight failed for domain %s; refusing to serve it", tenant)
		return st.err
	default:
		r.metrics.RecordPreflight(tenant, "error")
		logging.Warn("Domain", "Preflight for domain %s could not run: %v", tenant, err)
		return err
	}
}

// isSchemaFailure reports whether err means the dataset rejected the preflight
// query itself: a 400, an error inside a 2xx result, or an empty result.
func isSchemaFailure(err error) bool {
	var qe *api.QueryFailedError
	if !errors.As(err, &qe) {
		return false
	}
	return qe.Status == 0 || qe.Status == http.StatusBadRequest ||
		(qe.Status >= 200 && qe.Status < 300)
}

// PreflightResult reports whether the tenant's preflight has completed and
// its memoized outcome.
func (r *Registry) PreflightResult(tenant string) (done bool, err error) {
	st, ok := r.preflights[tenant]
	if !ok {
		return false, &api.UnknownDomainError{Tenant: tenant}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.done, st.err
}

func (r *Registry) runPreflight(ctx context.Context, b Binding, tokens api.TokenSource, runner api.QueryRunner) error {
	bearer, _, err := tokens.EnsureToken(ctx, api.ScopePrimary)
	if err != nil {
		return err
	}
	def := b.Default()
	result, err := runner.ExecuteQuery(ctx, def.WorkspaceID, def.ID, PreflightQuery(b.RequiredTables), bearer)
	if err != nil {
		return err
	}
	if result == nil || len(result.Rows) == 0 {
		return &api.QueryFailedError{Message: "preflight query returned no rows"}
	}
	return nil
}

// PreflightQuery builds a single-row DAX query that counts the rows of every
// table, failing if any table is missing.
func PreflightQuery(tables []string) string {
	cols := make([]string, 0, len(tables))
	for _, t := range tables {
		name := strings.ReplaceAll(t, `"`, `""`)
		ref := strings.ReplaceAll(t, "'", "''")
		cols = append(cols, fmt.Sprintf(`"%s", COUNTROWS('%s')`, name, ref))
	}
	return "EVALUATE ROW(" + strings.Join(cols, ", ") + ")"
}
