package domain

import (
	"fmt"
	"sort"
	"strings"

	"insightmcp/internal/api"
	"insightmcp/internal/metrics"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"
)

// Target is the effective dataset and workspace a query runs against.
type Target struct {
	Tenant      string
	DatasetID   string
	WorkspaceID string
}

// Registry is the domain isolation guard. Bindings are fixed at construction;
// only the preflight memo changes afterwards.
type Registry struct {
	bindings map[string]Binding
	// owners maps every bound dataset id to its tenant.
	owners  map[string]string
	metrics *metrics.Metrics
	// preflights has one entry per tenant; each entry carries its own lock.
	preflights map[string]*preflightState
}

// NewRegistry validates the bindings and builds a registry. A dataset id may
// be bound to one tenant only.
func NewRegistry(bindings []Binding, m *metrics.Metrics) (*Registry, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("at least one domain binding is required")
	}
	r := &Registry{
		bindings:   make(map[string]Binding, len(bindings)),
		owners:     make(map[string]string),
		metrics:    m,
		preflights: make(map[string]*preflightState, len(bindings)),
	}
	for _, b := range bindings {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.bindings[b.Tenant]; dup {
			return nil, fmt.Errorf("domain %q is bound more than once", b.Tenant)
		}
		for _, ds := range b.Datasets {
			if owner, taken := r.owners[ds.ID]; taken {
				return nil, fmt.Errorf("dataset %s is bound to both %q and %q", redact.ID(ds.ID), owner, b.Tenant)
			}
			r.owners[ds.ID] = b.Tenant
		}
		r.bindings[b.Tenant] = b.clone()
		r.preflights[b.Tenant] = &preflightState{}
	}
	return r, nil
}

// Tenants returns the configured tenants in sorted order.
func (r *Registry) Tenants() []string {
	tenants := make([]string, 0, len(r.bindings))
	for t := range r.bindings {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants
}

// Binding returns a copy of the tenant's binding.
func (r *Registry) Binding(tenant string) (Binding, bool) {
	b, ok := r.bindings[tenant]
	if !ok {
		return Binding{}, false
	}
	return b.clone(), true
}

// Resolve returns the dataset and workspace a query for tenant must use.
//
// An empty requested id selects the tenant's default dataset. Any requested
// id that is not part of the tenant's own binding fails with
// CrossDomainViolationError, whether or not another tenant owns it. A
// requested id from the tenant's own binding is honored only when the binding
// allows overrides; otherwise the default is used.
func (r *Registry) Resolve(tenant, requestedDatasetID string) (Target, error) {
	b, ok := r.bindings[tenant]
	if !ok {
		return Target{}, &api.UnknownDomainError{Tenant: tenant}
	}

	def := b.Default()
	target := Target{Tenant: tenant, DatasetID: def.ID, WorkspaceID: def.WorkspaceID}

	requested := strings.TrimSpace(requestedDatasetID)
	if requested == "" || requested == def.ID {
		return target, nil
	}

	ds, own := b.find(requested)
	if !own {
		owner := r.owners[requested]
		r.metrics.RecordDomainViolation(tenant)
		logging.Audit("cross_domain_violation", "Rejected dataset outside domain binding",
			"domain", tenant,
			"requested_dataset", redact.ID(requested),
			"owner_domain", owner)
		return Target{}, &api.CrossDomainViolationError{
			Tenant:      tenant,
			RequestedID: redact.ID(requested),
			OwnerTenant: owner,
		}
	}

	if !b.AllowOverride {
		logging.Debug("Domain", "Ignoring dataset override for domain %s (overrides disabled)", tenant)
		return target, nil
	}
	target.DatasetID = ds.ID
	target.WorkspaceID = ds.WorkspaceID
	return target, nil
}
