package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"overseer/pkg/logging"
)

const (
	userConfigDir  = ".config/overseer"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/overseer.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from the given directory. A missing file yields the
// default configuration with no servers.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s (%d servers)", configFilePath, len(cfg.Servers))
	return cfg, nil
}

// Parse decodes a YAML document and applies defaults. Unknown fields are rejected so
// that typos in server definitions surface early.
func Parse(data []byte) (Config, error) {
	cfg := GetDefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}
