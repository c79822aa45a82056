package app

import (
	"fmt"

	"insightmcp/internal/acquirer"
	"insightmcp/internal/biquery"
	"insightmcp/internal/deviceauth"
	"insightmcp/internal/dispatcher"
	"insightmcp/internal/domain"
	"insightmcp/internal/identity"
	"insightmcp/internal/metrics"
	"insightmcp/internal/server"
	"insightmcp/internal/tokencache"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"
)

// Services holds every wired component.
//
// Initialization order follows the dependencies:
//  1. Metrics and token cache
//  2. Identity provider and token acquirer (owning the auth state)
//  3. Device authenticator, warming the acquirer on completion
//  4. Domain registry, query client and dispatcher
//  5. MCP server exposing the auth and analytics tools
type Services struct {
	Metrics       *metrics.Metrics
	Cache         *tokencache.Cache
	Provider      identity.Provider
	Acquirer      *acquirer.Acquirer
	Authenticator *deviceauth.Authenticator
	Registry      *domain.Registry
	QueryClient   *biquery.Client
	Dispatcher    *dispatcher.Dispatcher
	Server        *server.Server
}

// InitializeServices creates all components from cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings
	if settings == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}

	m := metrics.New()

	cache, err := tokencache.New(tokencache.Config{
		StorageDir: settings.TokenCache.Dir,
		FileMode:   settings.TokenCache.Persist,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	provider, err := identity.NewEntraProvider(identity.EntraConfig{
		Authority: settings.Identity.Authority,
		TenantID:  settings.Identity.TenantID,
		ClientID:  settings.Identity.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	acq, err := acquirer.New(acquirer.Config{
		TenantID: settings.Identity.TenantID,
		ClientID: settings.Identity.ClientID,
		Scopes:   settings.ScopeSets(),
		Provider: provider,
		Cache:    cache,
		Metrics:  m,
	}, acquirer.NewAuthState())
	if err != nil {
		return nil, fmt.Errorf("failed to create token acquirer: %w", err)
	}

	authenticator, err := deviceauth.New(deviceauth.Config{
		Provider:    provider,
		Warmer:      acq,
		Scopes:      settings.AllScopes(),
		CodeTimeout: settings.Identity.CodeTimeout,
		Metrics:     m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create device authenticator: %w", err)
	}

	registry, err := domain.NewRegistry(settings.Bindings(), m)
	if err != nil {
		return nil, fmt.Errorf("invalid domain bindings: %w", err)
	}

	queryClient, err := biquery.New(biquery.Config{
		BaseURL: settings.QueryAPI.BaseURL,
		Timeout: settings.QueryAPI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create query client: %w", err)
	}

	disp, err := dispatcher.New(dispatcher.Config{
		Registry:    registry,
		Tokens:      acq,
		Runner:      queryClient,
		Metrics:     m,
		Invalidator: acq,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	srv, err := server.New(server.Config{
		Version:  cfg.Version,
		Login:    authenticator,
		Sessions: acq,
		Queries:  disp,
		Domains:  settings.Domains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	for _, tenant := range registry.Tenants() {
		b, _ := registry.Binding(tenant)
		logging.Debug("Services", "Domain %s bound to dataset %s (%d datasets, override=%t)",
			tenant, redact.ID(b.Default().ID), len(b.Datasets), b.AllowOverride)
	}

	return &Services{
		Metrics:       m,
		Cache:         cache,
		Provider:      provider,
		Acquirer:      acq,
		Authenticator: authenticator,
		Registry:      registry,
		QueryClient:   queryClient,
		Dispatcher:    disp,
		Server:        srv,
	}, nil
}

// Close cancels any in-flight device authorization.
func (s *Services) Close() {
	if s.Authenticator != nil {
		s.Authenticator.Close()
	}
}
