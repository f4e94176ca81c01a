package config

import "time"

// Attribute keys understood by the built-in server types.
const (
	AttrServerHome      = "server.home"
	AttrServerHost      = "server.host"
	AttrServerPort      = "server.port"
	AttrDeployFolder    = "server.deploy.folder"
	AttrStartupTimeout  = "server.timeout.startup"
	AttrShutdownTimeout = "server.timeout.shutdown"
	AttrPollInterval    = "server.poll.interval"
	AttrGracePeriod     = "server.stop.grace"
	AttrModes           = "server.modes"
)

// Attribute defaults.
const (
	DefaultServerHost      = "localhost"
	DefaultServerPort      = 8080
	DefaultStartupTimeout  = 120 * time.Second
	DefaultShutdownTimeout = 60 * time.Second
	DefaultPollInterval    = time.Second
	DefaultGracePeriod     = 10 * time.Second
	DefaultServerType      = "generic"
	DefaultMode            = "run"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// DefaultModes are the launch modes a server supports unless server.modes is set.
var DefaultModes = []string{"run", "debug"}

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyDefaults fills in unset fields after unmarshalling.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Type == "" {
			s.Type = DefaultServerType
		}
		if s.Mode == "" {
			s.Mode = DefaultMode
		}
		if s.Attributes == nil {
			s.Attributes = map[string]interface{}{}
		}
	}
}
