package app

import (
	"context"
	"fmt"

	"insightmcp/internal/config"
	"insightmcp/pkg/logging"
)

// Application bootstraps and runs insightmcp.
//
// Initialization happens in two phases: NewApplication loads configuration,
// sets up logging and wires every service; Run serves MCP until the client
// disconnects or the context is cancelled. CLI commands that do not serve
// use Services directly.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration and initializes all services.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, cfg.LogOutput)

	if cfg.Settings == nil {
		settings, err := config.Load(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Settings = settings
	}

	if !cfg.Debug {
		logging.Init(logging.ParseLevel(cfg.Settings.Logging.Level), cfg.LogOutput)
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

// Settings returns the loaded configuration file.
func (a *Application) Settings() *config.Config {
	return a.config.Settings
}

// Run serves MCP over stdio and blocks until the client disconnects or ctx
// is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.services.Close()
	return runServe(ctx, a.config, a.services)
}

// Close releases background work started by the services.
func (a *Application) Close() {
	a.services.Close()
}
