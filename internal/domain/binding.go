package domain

import (
	"fmt"
	"strings"
)

// Dataset is one dataset a domain may query, together with the workspace
// that hosts it.
type Dataset struct {
	ID          string
	WorkspaceID string
}

// Binding ties a domain (tenant) to the datasets it is allowed to query.
// The first dataset is the default target.
type Binding struct {
	Tenant   string
	Datasets []Dataset
	// AllowOverride lets callers pick one of the domain's own non-default
	// datasets. Requests for datasets outside the binding are always rejected.
	AllowOverride bool
	// RequiredTables are checked by the preflight query.
	RequiredTables []string
}

// Default returns the dataset used when the caller does not ask for one.
func (b Binding) Default() Dataset {
	return b.Datasets[0]
}

// find returns the dataset with id, if it is part of the binding.
func (b Binding) find(id string) (Dataset, bool) {
	for _, ds := range b.Datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return Dataset{}, false
}

func (b Binding) clone() Binding {
	b.Datasets = append([]Dataset(nil), b.Datasets...)
	b.RequiredTables = append([]string(nil), b.RequiredTables...)
	return b
}

func (b Binding) validate() error {
	if strings.TrimSpace(b.Tenant) == "" {
		return fmt.Errorf("binding has an empty tenant")
	}
	if len(b.Datasets) == 0 {
		return fmt.Errorf("domain %q has no datasets", b.Tenant)
	}
	seen := make(map[string]bool, len(b.Datasets))
	for i, ds := range b.Datasets {
		if strings.TrimSpace(ds.ID) == "" {
			return fmt.Errorf("domain %q: dataset %d has an empty id", b.Tenant, i)
		}
		if strings.TrimSpace(ds.WorkspaceID) == "" {
			return fmt.Errorf("domain %q: dataset %d has an empty workspace id", b.Tenant, i)
		}
		if seen[ds.ID] {
			return fmt.Errorf("domain %q lists a dataset twice", b.Tenant)
		}
		seen[ds.ID] = true
	}
	for _, table := range b.RequiredTables {
		if strings.TrimSpace(table) == "" {
			return fmt.Errorf("domain %q has an empty required table name", b.Tenant)
		}
	}
	return nil
}
