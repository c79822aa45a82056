package app

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/config"
	"insightmcp/internal/deviceauth"
	"insightmcp/internal/dispatcher"
	"insightmcp/internal/testing/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTenantID = "contoso"
	testClientID = "insight-client"
)

func testSettings(identityURL, queryURL string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Identity.Authority = identityURL
	cfg.Identity.TenantID = testTenantID
	cfg.Identity.ClientID = testClientID
	cfg.Identity.CodeTimeout = 5 * time.Second
	cfg.QueryAPI.BaseURL = queryURL
	cfg.QueryAPI.Timeout = 5 * time.Second
	cfg.TokenCache.Persist = false
	cfg.Scopes = config.ScopesConfig{
		Primary:      []string{"https://analysis.windows.net/powerbi/api/.default"},
		Profile:      []string{"User.Read"},
		DelegatedAPI: []string{"api://reports/.default"},
	}
	cfg.Domains = []config.DomainConfig{
		{
			Name:           "sales",
			Datasets:       []config.DatasetConfig{{ID: "D1", WorkspaceID: "W1"}},
			RequiredTables: []string{"Pipeline"},
			Tools: []config.ToolConfig{{
				Name:  "get_pipeline_summary",
				Query: "EVALUATE 'Pipeline'",
			}},
		},
		{
			Name:     "labor",
			Datasets: []config.DatasetConfig{{ID: "D2", WorkspaceID: "W2"}},
			Tools: []config.ToolConfig{{
				Name:  "get_shift_hours",
				Query: "EVALUATE 'Shifts'",
			}},
		},
	}
	return &cfg
}

func newTestApplication(t *testing.T, settings *config.Config) *Application {
	t.Helper()
	cfg := NewConfig(false, "")
	cfg.Settings = settings
	cfg.LogOutput = io.Discard
	application, err := NewApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)
	return application
}

func TestInitializeServices_Wiring(t *testing.T) {
	application := newTestApplication(t, testSettings("http://127.0.0.1:1", "http://127.0.0.1:1"))
	s := application.Services()

	assert.NotNil(t, s.Acquirer)
	assert.NotNil(t, s.Authenticator)
	assert.NotNil(t, s.Dispatcher)
	assert.Equal(t, []string{"labor", "sales"}, s.Registry.Tenants())
	assert.Equal(t, []string{
		"start_login", "check_login_status", "auth_status", "logout",
		"get_pipeline_summary", "get_shift_hours",
	}, s.Server.ToolNames())
}

func TestInitializeServices_RejectsSharedDataset(t *testing.T) {
	settings := testSettings("http://127.0.0.1:1", "http://127.0.0.1:1")
	settings.Domains[1].Datasets[0].ID = "D1"

	_, err := InitializeServices(&Config{Settings: settings})
	assert.ErrorContains(t, err, "domain bindings")
}

func TestInitializeServices_RequiresSettings(t *testing.T) {
	_, err := InitializeServices(&Config{})
	assert.Error(t, err)
}

// Login, warm-up, isolated dispatch and logout against local mock services.
func TestEndToEnd_LoginAndDispatch(t *testing.T) {
	idp := mock.NewIdentityServer(mock.IdentityServerConfig{TenantID: testTenantID, ClientID: testClientID})
	defer idp.Close()
	bi := mock.NewQueryServer()
	defer bi.Close()
	bi.SetRows("D1", []map[string]any{{"Stage": "Won", "Amount": 10.0}})
	bi.SetRows("D2", []map[string]any{{"Shift": "Night"}})

	s := newTestApplication(t, testSettings(idp.URL, bi.URL)).Services()
	ctx := context.Background()

	// No session yet: the dispatcher refuses instead of prompting.
	_, err := s.Dispatcher.Execute(ctx, dispatcher.Request{Tenant: "labor", Tool: "get_shift_hours", Query: "EVALUATE 'Shifts'"})
	assert.True(t, api.IsAuthenticationRequired(err))
	assert.Empty(t, bi.Calls())

	start, err := s.Authenticator.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", start.UserCode)
	assert.Equal(t, deviceauth.StatusPending, s.Authenticator.CheckStatus(ctx).Status)

	idp.Approve()

	var status *deviceauth.StatusResult
	require.Eventually(t, func() bool {
		status = s.Authenticator.CheckStatus(ctx)
		return status.Status == deviceauth.StatusComplete
	}, 15*time.Second, 50*time.Millisecond)
	assert.Equal(t, map[string]string{"primary": "ready", "profile": "ready", "delegated_api": "ready"}, status.Tokens)
	assert.Equal(t, 3, idp.SilentCalls())

	res, err := s.Dispatcher.Execute(ctx, dispatcher.Request{Tenant: "sales", Tool: "get_pipeline_summary", Query: "EVALUATE 'Pipeline'"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"Stage": "Won", "Amount": 10.0}}, res.Rows)

	_, err = s.Dispatcher.Execute(ctx, dispatcher.Request{
		Tenant: "sales", Tool: "get_pipeline_summary", Query: "EVALUATE 'Pipeline'",
		Args: map[string]any{dispatcher.DatasetOverrideArg: "D2"},
	})
	assert.True(t, api.IsCrossDomainViolation(err))

	for _, call := range bi.Calls() {
		assert.Equal(t, "D1", call.DatasetID)
	}
	// Cached tokens served the queries; no extra silent calls.
	assert.Equal(t, 3, idp.SilentCalls())

	require.NoError(t, s.Acquirer.Logout())
	_, err = s.Dispatcher.Execute(ctx, dispatcher.Request{Tenant: "labor", Tool: "get_shift_hours", Query: "EVALUATE 'Shifts'"})
	assert.True(t, api.IsAuthenticationRequired(err))
}

func TestStartMetricsServer(t *testing.T) {
	s := newTestApplication(t, testSettings("http://127.0.0.1:1", "http://127.0.0.1:1")).Services()
	s.Metrics.RecordDeviceFlow("started")

	addr, shutdown, err := startMetricsServer("127.0.0.1:0", s)
	require.NoError(t, err)
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `insightmcp_device_flows_total{outcome="started"} 1`)
}
