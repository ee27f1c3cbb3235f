package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from an optional YAML file, defaults,
// and HELIOS_* environment variables, in that order of precedence
// (environment wins). An empty path means no file; a named file that
// does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if cfg.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Storage.DataDir = filepath.Join(home, ".helios")
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies HELIOS_* environment variables over the
// loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("HELIOS_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("HELIOS_DATA_DIR"); val != "" {
		cfg.Storage.DataDir = val
	}
	if val := os.Getenv("HELIOS_ENABLE_REQUEST_LOGS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Storage.RequestLogs = b
		}
	}
	if val := os.Getenv("HELIOS_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("HELIOS_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}
