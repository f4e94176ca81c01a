package config

// Config is the top-level configuration structure for overseer.
type Config struct {
	Logging LoggingConfig  `yaml:"logging,omitempty"`
	Metrics MetricsConfig  `yaml:"metrics,omitempty"`
	Servers []ServerConfig `yaml:"servers"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"` // listen address, e.g. ":9090"; empty disables the endpoint
}

// ServerConfig describes one managed server.
type ServerConfig struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type,omitempty"`        // server type id (default: generic)
	AutoStart   bool                   `yaml:"autoStart,omitempty"`   // start when overseer starts
	Mode        string                 `yaml:"mode,omitempty"`        // launch mode used by autoStart (default: run)
	AutoPublish bool                   `yaml:"autoPublish,omitempty"` // republish deployables when their sources change
	Attributes  map[string]interface{} `yaml:"attributes,omitempty"`

	// Start and Stop override the command templates of the server type.
	Start []CommandConfig `yaml:"start,omitempty"`
	Stop  []CommandConfig `yaml:"stop,omitempty"`

	Deployables []DeployableConfig `yaml:"deployables,omitempty"`
}

// CommandConfig is a templated command line. Command, Args, Dir and Env values are
// text/template strings evaluated against the server attributes and launch mode.
type CommandConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// DeployableConfig registers an artifact to publish on startup.
type DeployableConfig struct {
	Label   string            `yaml:"label"`
	Path    string            `yaml:"path"`
	Options map[string]string `yaml:"options,omitempty"`
}
