package app

import (
	"overseer/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level
	Debug bool

	// Quiet disables the progress spinner
	Quiet bool

	// ConfigPath is the directory holding config.yaml
	ConfigPath string

	// MetricsAddress overrides metrics.address from config.yaml
	MetricsAddress string

	// OverseerConfig is loaded from ConfigPath when nil
	OverseerConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, metricsAddress string) *Config {
	return &Config{
		Debug:          debug,
		ConfigPath:     configPath,
		MetricsAddress: metricsAddress,
	}
}
