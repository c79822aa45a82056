package app

import (
	"io"

	"insightmcp/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logging.level.
	Debug bool

	// ConfigPath is the configuration file. Empty means the default path.
	ConfigPath string

	// MetricsAddr overrides metrics.addr when set.
	MetricsAddr string

	// Version is reported to MCP clients.
	Version string

	// LogOutput receives log output. Defaults to stderr, since stdout
	// carries the MCP transport.
	LogOutput io.Writer

	// Settings is the loaded configuration file. Populated by
	// NewApplication unless set beforehand.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
