package config

import (
	"time"

	"insightmcp/internal/biquery"
	"insightmcp/internal/deviceauth"
)

const (
	// DefaultAuthority is the Microsoft identity platform host.
	DefaultAuthority = "https://login.microsoftonline.com"

	// DefaultLogLevel is used when logging.level is not set.
	DefaultLogLevel = "info"
)

// Environment variables that override the identity section.
const (
	EnvTenantID = "INSIGHTMCP_TENANT_ID"
	EnvClientID = "INSIGHTMCP_CLIENT_ID"
)

// GetDefaultConfig returns the defaults that apply before the config file is
// read. Tenant, client, scopes and domains have no defaults.
func GetDefaultConfig() Config {
	return Config{
		Identity: IdentityConfig{
			Authority:   DefaultAuthority,
			CodeTimeout: deviceauth.DefaultCodeTimeout,
		},
		QueryAPI: QueryAPIConfig{
			BaseURL: biquery.DefaultBaseURL,
			Timeout: biquery.DefaultTimeout,
		},
		TokenCache: TokenCacheConfig{
			Persist: true,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// applyDefaults fills fields a config file explicitly left empty.
func (c *Config) applyDefaults() {
	def := GetDefaultConfig()
	if c.Identity.Authority == "" {
		c.Identity.Authority = def.Identity.Authority
	}
	if c.Identity.CodeTimeout <= 0 {
		c.Identity.CodeTimeout = def.Identity.CodeTimeout
	}
	if c.QueryAPI.BaseURL == "" {
		c.QueryAPI.BaseURL = def.QueryAPI.BaseURL
	}
	if c.QueryAPI.Timeout <= 0 {
		c.QueryAPI.Timeout = def.QueryAPI.Timeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	for i := range c.Domains {
		for j := range c.Domains[i].Tools {
			for k := range c.Domains[i].Tools[j].Arguments {
				arg := &c.Domains[i].Tools[j].Arguments[k]
				if arg.Type == "" {
					arg.Type = ArgTypeString
				}
			}
		}
	}
}

// timeoutCeiling bounds configurable timeouts.
const timeoutCeiling = 10 * time.Minute
