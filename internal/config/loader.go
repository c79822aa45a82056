package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"insightmcp/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/insightmcp"
	configFileName = "config.yaml"
)

// Indirections for tests.
var (
	osUserHomeDir = os.UserHomeDir
	osLookupEnv   = os.LookupEnv
)

// DefaultPath returns ~/.config/insightmcp/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// Load reads the configuration file at path (DefaultPath when empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigurationError{
				FilePath:  path,
				ErrorType: "io",
				Message:   "configuration file not found",
				Suggestions: []string{
					"create " + path + " with identity, scopes and domains sections",
					"or pass --config to point at an existing file",
				},
			}
		}
		return nil, &ConfigurationError{FilePath: path, ErrorType: "io", Message: err.Error()}
	}

	cfg, err := Parse(data)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath = path
		}
		return nil, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, nil
}

// Parse decodes YAML configuration data, applies environment overrides and
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := GetDefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document is left to validation.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{
			ErrorType: "parse",
			Message:   "malformed configuration",
			Details:   err.Error(),
		}
	}

	applyEnvOverrides(&cfg)
	cfg.applyDefaults()

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := osLookupEnv(EnvTenantID); ok && strings.TrimSpace(v) != "" {
		logging.Debug("ConfigLoader", "Tenant id taken from %s", EnvTenantID)
		cfg.Identity.TenantID = strings.TrimSpace(v)
	}
	if v, ok := osLookupEnv(EnvClientID); ok && strings.TrimSpace(v) != "" {
		logging.Debug("ConfigLoader", "Client id taken from %s", EnvClientID)
		cfg.Identity.ClientID = strings.TrimSpace(v)
	}
}
