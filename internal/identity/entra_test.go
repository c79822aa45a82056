package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"insightmcp/internal/api"
	"insightmcp/internal/testing/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testTenantID = "contoso-tenant"
	testClientID = "client-123"
)

func newTestProvider(t *testing.T, srv *mock.IdentityServer) *EntraProvider {
	t.Helper()
	p, err := NewEntraProvider(EntraConfig{
		Authority:  srv.URL,
		TenantID:   testTenantID,
		ClientID:   testClientID,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNewEntraProvider_RequiresIDs(t *testing.T) {
	_, err := NewEntraProvider(EntraConfig{ClientID: "c"})
	assert.Error(t, err)
	_, err = NewEntraProvider(EntraConfig{TenantID: "t"})
	assert.Error(t, err)

	p, err := NewEntraProvider(EntraConfig{TenantID: "t", ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthority+"/t/oauth2/v2.0/devicecode", p.endpoint.DeviceAuthURL)
	assert.Equal(t, DefaultAuthority+"/t/oauth2/v2.0/token", p.endpoint.TokenURL)
}

func TestEntraProvider_DeviceFlowCompletes(t *testing.T) {
	srv := mock.NewIdentityServer(mock.IdentityServerConfig{
		TenantID:   testTenantID,
		ClientID:   testClientID,
		UserCode:   "WXYZ-1234",
		AccountOID: "oid-1",
		Username:   "bob@example.com",
	})
	defer srv.Close()
	srv.Approve()

	p := newTestProvider(t, srv)

	var got DeviceCode
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := p.BeginDeviceFlow(ctx, []string{"https://analysis.windows.net/powerbi/api/.default"}, func(dc DeviceCode) {
		got = dc
	})
	require.NoError(t, err)

	assert.Equal(t, "WXYZ-1234", got.UserCode)
	assert.Equal(t, srv.URL+"/devicelogin", got.VerificationURI)
	assert.Contains(t, got.Message, "WXYZ-1234")

	require.NotNil(t, session)
	assert.Equal(t, "oid-1."+testTenantID, session.AccountID)
	assert.Equal(t, "bob@example.com", session.Username)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.RefreshCredential())
}

func TestEntraProvider_DeviceFlowDeclined(t *testing.T) {
	srv := mock.NewIdentityServer(mock.IdentityServerConfig{TenantID: testTenantID, ClientID: testClientID})
	defer srv.Close()
	srv.Decline()

	p := newTestProvider(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := p.BeginDeviceFlow(ctx, nil, nil)
	require.Error(t, err)

	classified := ClassifyDeviceFlowError(err)
	assert.Equal(t, "the sign-in request was declined", classified.Reason)
}

func TestEntraProvider_DeviceFlowCancelled(t *testing.T) {
	srv := mock.NewIdentityServer(mock.IdentityServerConfig{TenantID: testTenantID, ClientID: testClientID})
	defer srv.Close()

	p := newTestProvider(t, srv)
	ctx, cancel := context.WithCancel(context.Background())

	codeReady := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := p.BeginDeviceFlow(ctx, nil, func(DeviceCode) { close(codeReady) })
		errCh <- err
	}()

	<-codeReady
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, "device authorization was cancelled", ClassifyDeviceFlowError(err).Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("device flow did not stop after cancellation")
	}
}

func TestEntraProvider_AcquireSilently(t *testing.T) {
	srv := mock.NewIdentityServer(mock.IdentityServerConfig{
		TenantID:      testTenantID,
		ClientID:      testClientID,
		TokenLifetime: 30 * time.Minute,
	})
	defer srv.Close()
	srv.Approve()

	p := newTestProvider(t, srv)
	fixed := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := p.BeginDeviceFlow(ctx, nil, nil)
	require.NoError(t, err)
	firstRT := session.RefreshCredential()

	tok, err := p.AcquireSilently(ctx, session, []string{"User.Read"})
	require.NoError(t, err)
	assert.False(t, tok.Bearer.IsEmpty())
	assert.Equal(t, fixed.Add(30*time.Minute), tok.Expiry)
	assert.Equal(t, []string{"User.Read", "offline_access"}, srv.LastSilentScopes())

	assert.NotEqual(t, firstRT, session.RefreshCredential(), "refresh credential should rotate")

	// The rotated credential keeps working.
	_, err = p.AcquireSilently(ctx, session, []string{"api://reports/.default"})
	require.NoError(t, err)
	assert.Equal(t, 2, srv.SilentCalls())
}

func TestEntraProvider_AcquireSilently_ConsentRevoked(t *testing.T) {
	srv := mock.NewIdentityServer(mock.IdentityServerConfig{TenantID: testTenantID, ClientID: testClientID})
	defer srv.Close()
	srv.Approve()
	srv.RevokeConsent("api://reports/.default")

	p := newTestProvider(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := p.BeginDeviceFlow(ctx, nil, nil)
	require.NoError(t, err)

	_, err = p.AcquireSilently(ctx, session, []string{"api://reports/.default"})
	require.Error(t, err)
	assert.True(t, IsInteractionRequired(err))

	var re *oauth2.RetrieveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "consent_required", re.ErrorCode)
}

func TestEntraProvider_AcquireSilently_NoCredential(t *testing.T) {
	p, err := NewEntraProvider(EntraConfig{TenantID: "t", ClientID: "c"})
	require.NoError(t, err)

	_, err = p.AcquireSilently(context.Background(), nil, []string{"x"})
	assert.ErrorIs(t, err, ErrNoRefreshCredential)

	_, err = p.AcquireSilently(context.Background(), NewSession("a", "", "", time.Now()), []string{"x"})
	assert.ErrorIs(t, err, ErrNoRefreshCredential)
	assert.True(t, IsInteractionRequired(err))
}

func TestClassifyDeviceFlowError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"nil", nil, ""},
		{"declined", &oauth2.RetrieveError{ErrorCode: "authorization_declined"}, "the sign-in request was declined"},
		{"denied", &oauth2.RetrieveError{ErrorCode: "access_denied"}, "the sign-in request was declined"},
		{"expired", &oauth2.RetrieveError{ErrorCode: "expired_token"}, "the device code expired before sign-in completed"},
		{"other provider", &oauth2.RetrieveError{ErrorCode: "invalid_client", ErrorDescription: "AADSTS700016"},
			"identity provider rejected the request (invalid_client): AADSTS700016"},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), "device authorization timed out"},
		{"network", errors.New("dial tcp: connection refused"), "could not reach the identity provider: dial tcp: connection refused"},
		{"already classified", &api.DeviceFlowFailedError{Reason: "custom"}, "custom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDeviceFlowError(tc.err)
			if tc.err == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestAccountFromIDToken_Fallbacks(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "x"}).WithExtra(map[string]any{"id_token": "not-a-jwt"})
	account, user := accountFromIDToken(tok)
	assert.Contains(t, account, "anonymous-")
	assert.Empty(t, user)
}

func TestMergeScopes(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "openid", "b", "offline_access"},
		mergeScopes([]string{"a", "openid", "b", "a"}, []string{"openid", "offline_access"}))
}
