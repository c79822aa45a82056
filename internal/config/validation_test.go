package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := GetDefaultConfig()
	cfg.Identity.TenantID = "t"
	cfg.Identity.ClientID = "c"
	cfg.Scopes = ScopesConfig{Primary: []string{"a"}, Profile: []string{"b"}, DelegatedAPI: []string{"c"}}
	cfg.Domains = []DomainConfig{
		{
			Name:     "sales",
			Datasets: []DatasetConfig{{ID: "D1", WorkspaceID: "W1"}},
			Tools: []ToolConfig{{
				Name:      "get_pipeline_summary",
				Query:     "EVALUATE 'Pipeline'",
				Arguments: []ArgumentConfig{{Name: "stage", Type: ArgTypeString}},
			}},
		},
		{
			Name:     "labor",
			Datasets: []DatasetConfig{{ID: "D2", WorkspaceID: "W2"}},
		},
	}
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.Validate().HasErrors())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing tenant", func(c *Config) { c.Identity.TenantID = "" }, "identity.tenantId"},
		{"missing client", func(c *Config) { c.Identity.ClientID = " " }, "identity.clientId"},
		{"bad authority", func(c *Config) { c.Identity.Authority = "login.example" }, "identity.authority"},
		{"missing scope set", func(c *Config) { c.Scopes.DelegatedAPI = nil }, "scopes.delegatedApi"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"no domains", func(c *Config) { c.Domains = nil }, "domains"},
		{"duplicate domain", func(c *Config) { c.Domains[1].Name = "sales" }, "more than once"},
		{"bad domain name", func(c *Config) { c.Domains[1].Name = "Labor Team" }, "domains[1].name"},
		{"no datasets", func(c *Config) { c.Domains[1].Datasets = nil }, "domains[labor].datasets"},
		{"missing workspace", func(c *Config) { c.Domains[1].Datasets[0].WorkspaceID = "" }, "workspaceId"},
		{"shared dataset", func(c *Config) { c.Domains[1].Datasets[0].ID = "D1" }, "already bound"},
		{"reserved tool", func(c *Config) { c.Domains[0].Tools[0].Name = "logout" }, "reserved"},
		{"bad tool name", func(c *Config) { c.Domains[0].Tools[0].Name = "Get-Pipeline" }, "snake_case"},
		{"empty query", func(c *Config) { c.Domains[0].Tools[0].Query = "" }, ".query"},
		{"duplicate tool across domains", func(c *Config) {
			c.Domains[1].Tools = []ToolConfig{{Name: "get_pipeline_summary", Query: "EVALUATE 'X'"}}
		}, "already declared"},
		{"bad arg type", func(c *Config) { c.Domains[0].Tools[0].Arguments[0].Type = "date" }, ".type"},
		{"reserved arg", func(c *Config) { c.Domains[0].Tools[0].Arguments[0].Name = DatasetOverrideArg }, "reserved"},
		{"empty required table", func(c *Config) { c.Domains[0].RequiredTables = []string{""} }, "requiredTables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			require.True(t, errs.HasErrors())
			assert.Contains(t, errs.Error(), tt.field)
		})
	}
}

func TestValidate_SharedDatasetMessageIsRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Domains[0].Datasets[0].ID = "0f1e2d3c-aaaa-bbbb-cccc-1234567890ab"
	cfg.Domains[1].Datasets[0].ID = "0f1e2d3c-aaaa-bbbb-cccc-1234567890ab"

	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
	assert.False(t, strings.Contains(errs.Error(), "1234567890ab"))
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is required")
	assert.Equal(t, "field 'a': is required", errs.Error())

	errs.Add("b", "is bad", 3)
	assert.Equal(t, "validation failed: field 'a': is required; field 'b': is bad", errs.Error())
	assert.Equal(t, 3, errs[1].Value)
}
