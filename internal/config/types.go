package config

import (
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/domain"
)

// Config is the top-level configuration for insightmcp.
type Config struct {
	Identity   IdentityConfig   `yaml:"identity"`
	Scopes     ScopesConfig     `yaml:"scopes"`
	QueryAPI   QueryAPIConfig   `yaml:"queryApi"`
	TokenCache TokenCacheConfig `yaml:"tokenCache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Domains    []DomainConfig   `yaml:"domains"`
}

// IdentityConfig addresses the identity provider.
type IdentityConfig struct {
	Authority   string        `yaml:"authority,omitempty"` // default: https://login.microsoftonline.com
	TenantID    string        `yaml:"tenantId"`            // required; INSIGHTMCP_TENANT_ID overrides
	ClientID    string        `yaml:"clientId"`            // required; INSIGHTMCP_CLIENT_ID overrides
	CodeTimeout time.Duration `yaml:"codeTimeout,omitempty"`
}

// ScopesConfig holds the fixed scope set of each token kind.
type ScopesConfig struct {
	Primary      []string `yaml:"primary"`
	Profile      []string `yaml:"profile"`
	DelegatedAPI []string `yaml:"delegatedApi"`
}

// QueryAPIConfig configures the BI query API client.
type QueryAPIConfig struct {
	BaseURL string        `yaml:"baseUrl,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TokenCacheConfig configures token persistence.
type TokenCacheConfig struct {
	Persist bool   `yaml:"persist"`
	Dir     string `yaml:"dir,omitempty"` // default: ~/.config/insightmcp/tokens
}

// LoggingConfig configures the log level.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // empty disables the listener
}

// DomainConfig binds one domain (tenant) to its datasets and tools.
type DomainConfig struct {
	Name           string          `yaml:"name"`
	Datasets       []DatasetConfig `yaml:"datasets"`
	AllowOverride  bool            `yaml:"allowOverride,omitempty"`
	RequiredTables []string        `yaml:"requiredTables,omitempty"`
	Tools          []ToolConfig    `yaml:"tools,omitempty"`
}

// DatasetConfig is one dataset and its hosting workspace.
type DatasetConfig struct {
	ID          string `yaml:"id"`
	WorkspaceID string `yaml:"workspaceId"`
}

// ToolConfig declares an analytics tool. Query is a text/template rendered
// with the caller's arguments.
type ToolConfig struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Query       string           `yaml:"query"`
	Arguments   []ArgumentConfig `yaml:"arguments,omitempty"`
}

// Argument types accepted in tool declarations.
const (
	ArgTypeString  = "string"
	ArgTypeNumber  = "number"
	ArgTypeBoolean = "boolean"
)

// ArgumentConfig declares one tool argument.
type ArgumentConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type,omitempty"` // default: string
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ScopeSets returns the configured scope set of every token kind.
func (c *Config) ScopeSets() map[api.ScopeKind][]string {
	return map[api.ScopeKind][]string{
		api.ScopePrimary:      c.Scopes.Primary,
		api.ScopeProfile:      c.Scopes.Profile,
		api.ScopeDelegatedAPI: c.Scopes.DelegatedAPI,
	}
}

// AllScopes returns the union of every kind's scopes, in kind order, for the
// device flow request.
func (c *Config) AllScopes() []string {
	seen := make(map[string]bool)
	var out []string
	sets := c.ScopeSets()
	for _, kind := range api.AllScopeKinds {
		for _, s := range sets[kind] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Bindings converts the domain section into registry bindings.
func (c *Config) Bindings() []domain.Binding {
	out := make([]domain.Binding, 0, len(c.Domains))
	for _, d := range c.Domains {
		b := domain.Binding{
			Tenant:         d.Name,
			AllowOverride:  d.AllowOverride,
			RequiredTables: append([]string(nil), d.RequiredTables...),
		}
		for _, ds := range d.Datasets {
			b.Datasets = append(b.Datasets, domain.Dataset{ID: ds.ID, WorkspaceID: ds.WorkspaceID})
		}
		out = append(out, b)
	}
	return out
}
