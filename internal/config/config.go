// Package config handles reading and writing the Tempo CLI config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the backend used when no config file or environment
// override is present.
const DefaultBaseURL = "http://localhost:8000"

// Config is the top-level structure for config.yaml.
type Config struct {
	// BaseURL is the Tempo backend, e.g. "https://api.tempo.example".
	BaseURL string `yaml:"base_url"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const configDirName = "tempo"
const configFile = "config.yaml"

// Path returns the conventional config file location
// ($XDG_CONFIG_HOME/tempo/config.yaml).
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, configFile), nil
}

// Read reads the config file at path. Returns an error if the file is not
// found or the YAML is malformed.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Write writes cfg to path, creating parent directories if needed.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		BaseURL:  DefaultBaseURL,
		LogLevel: "info",
	}
}

// Load reads the config from the default location, falling back to defaults
// when no file exists. The TEMPO_BASE_URL environment variable overrides
// the configured backend either way.
func Load() *Config {
	cfg := Default()
	if path, err := Path(); err == nil {
		if fromFile, err := Read(path); err == nil {
			if fromFile.BaseURL != "" {
				cfg.BaseURL = fromFile.BaseURL
			}
			if fromFile.LogLevel != "" {
				cfg.LogLevel = fromFile.LogLevel
			}
		}
	}
	if env := os.Getenv("TEMPO_BASE_URL"); env != "" {
		cfg.BaseURL = env
	}
	return cfg
}
