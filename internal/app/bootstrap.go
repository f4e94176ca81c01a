package app

import (
	"fmt"
	"io"
	"os"

	"overseer/internal/config"
	"overseer/internal/events"
	"overseer/internal/servertype"
	"overseer/pkg/logging"
)

// Application wires the configured servers to the event dispatcher and runs them
// until it is signalled to stop.
//
//	cfg := app.NewConfig(false, "/etc/overseer", ":9090")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
type Application struct {
	config     *Config
	dispatcher *events.Dispatcher
	servers    *servertype.Registry
}

// NewApplication loads and validates the configuration, initializes logging and
// builds every configured server. Nothing is started yet.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	logging.InitForCLI(level, logOutput)

	if cfg.OverseerConfig == nil {
		if cfg.ConfigPath == "" {
			path, err := config.GetDefaultConfigPath()
			if err != nil {
				return nil, err
			}
			cfg.ConfigPath = path
		}
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
		}
		cfg.OverseerConfig = &loaded
	}

	if !cfg.Debug {
		level = logging.ParseLevel(cfg.OverseerConfig.Logging.Level)
	}
	logging.Init(level, logging.Format(cfg.OverseerConfig.Logging.Format), logOutput)

	if err := config.Validate(*cfg.OverseerConfig, servertype.KnownType); err != nil {
		logging.Error("Bootstrap", err, "Invalid configuration")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dispatcher := events.NewDispatcher()
	servers, err := servertype.Build(*cfg.OverseerConfig, servertype.Options{Events: dispatcher})
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to create servers")
		return nil, fmt.Errorf("failed to create servers: %w", err)
	}
	logging.Info("Bootstrap", "Configured %d servers", len(servers.All()))

	return &Application{
		config:     cfg,
		dispatcher: dispatcher,
		servers:    servers,
	}, nil
}

// Servers returns the server registry.
func (a *Application) Servers() *servertype.Registry { return a.servers }

// Events returns the event dispatcher.
func (a *Application) Events() *events.Dispatcher { return a.dispatcher }
