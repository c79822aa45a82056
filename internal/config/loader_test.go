package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"insightmcp/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
identity:
  tenantId: contoso-tenant
  clientId: app-client
scopes:
  primary: ["https://analysis.windows.net/powerbi/api/.default"]
  profile: ["User.Read"]
  delegatedApi: ["api://reports/.default", "User.Read"]
domains:
  - name: sales
    datasets:
      - id: D1
        workspaceId: W1
    requiredTables: [Opportunities]
    tools:
      - name: get_pipeline_summary
        description: Open pipeline by stage
        query: "EVALUATE 'Opportunities'"
        arguments:
          - name: stage
            required: true
  - name: labor
    allowOverride: true
    datasets:
      - id: D2
        workspaceId: W2
      - id: D3
        workspaceId: W2
`

// withEnv replaces the environment lookup for one test.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	orig := osLookupEnv
	osLookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { osLookupEnv = orig })
}

func TestParse_Valid(t *testing.T) {
	withEnv(t, nil)

	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "contoso-tenant", cfg.Identity.TenantID)
	assert.Equal(t, DefaultAuthority, cfg.Identity.Authority)
	assert.Equal(t, 20*time.Second, cfg.Identity.CodeTimeout)
	assert.Equal(t, 60*time.Second, cfg.QueryAPI.Timeout)
	assert.True(t, cfg.TokenCache.Persist)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ArgTypeString, cfg.Domains[0].Tools[0].Arguments[0].Type)

	bindings := cfg.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, "sales", bindings[0].Tenant)
	assert.Equal(t, "D1", bindings[0].Default().ID)
	assert.True(t, bindings[1].AllowOverride)
	assert.Len(t, bindings[1].Datasets, 2)

	assert.Equal(t, []string{"User.Read"}, cfg.ScopeSets()[api.ScopeProfile])
	assert.Equal(t, []string{
		"https://analysis.windows.net/powerbi/api/.default",
		"User.Read",
		"api://reports/.default",
	}, cfg.AllScopes())
}

func TestParse_Durations(t *testing.T) {
	withEnv(t, nil)
	data := validYAML + `
queryApi:
  timeout: 15s
tokenCache:
  persist: false
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.QueryAPI.Timeout)
	assert.False(t, cfg.TokenCache.Persist)
}

func TestParse_EnvOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		EnvTenantID: " env-tenant ",
		EnvClientID: "env-client",
	})

	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-tenant", cfg.Identity.TenantID)
	assert.Equal(t, "env-client", cfg.Identity.ClientID)
}

func TestParse_EnvSuppliesMissingIdentity(t *testing.T) {
	withEnv(t, map[string]string{EnvTenantID: "t", EnvClientID: "c"})
	data := `
scopes:
  primary: [a]
  profile: [b]
  delegatedApi: [c]
domains:
  - name: sales
    datasets: [{id: D1, workspaceId: W1}]
`
	_, err := Parse([]byte(data))
	assert.NoError(t, err)
}

func TestParse_UnknownField(t *testing.T) {
	withEnv(t, nil)
	_, err := Parse([]byte(validYAML + "\nunexpected: true\n"))
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "parse", cfgErr.ErrorType)
}

func TestParse_EmptyDocumentFailsValidation(t *testing.T) {
	withEnv(t, nil)
	_, err := Parse(nil)
	require.Error(t, err)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, err.Error(), "identity.tenantId")
	assert.Contains(t, err.Error(), "domains")
}

func TestLoad_File(t *testing.T) {
	withEnv(t, nil)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Domains, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, path, cfgErr.FilePath)
	assert.Contains(t, cfgErr.DetailedError(), "Suggestions")
}

func TestLoad_DefaultPath(t *testing.T) {
	withEnv(t, nil)
	home := t.TempDir()
	orig := osUserHomeDir
	osUserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { osUserHomeDir = orig })

	dir := filepath.Join(home, ".config", "insightmcp")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(validYAML), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "contoso-tenant", cfg.Identity.TenantID)
}
