// Package config loads the JSON configuration file for the engine,
// falling back to embedded defaults for anything unset.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const configFileName = "enchanter_config.json"

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < -1 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between -1 and 5")
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".enchanter")
	}

	if cfg.TrackerTimeoutSeconds == 0 {
		cfg.TrackerTimeoutSeconds = 15
	}
	if cfg.ReceiptLookbackBlocks == 0 {
		cfg.ReceiptLookbackBlocks = 500000
	}

	if len(cfg.Networks) == 0 {
		var defaultCfg Config
		if err := json.Unmarshal(defaultConfigJSON, &defaultCfg); err == nil {
			cfg.Networks = defaultCfg.Networks
			if cfg.TrackerURL == "" {
				cfg.TrackerURL = defaultCfg.TrackerURL
			}
		} else {
			cfg.Networks = make(map[string]NetworkConfig)
		}
	}

	if cfg.TrackerURL == "" {
		return fmt.Errorf("tracker_url must be set")
	}

	return nil
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration from path. An empty path loads
// <DataDir>/enchanter_config.json if present, otherwise the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg, err := Default()
		if err != nil {
			return nil, err
		}
		candidate := filepath.Join(cfg.DataDir, configFileName)
		if _, err := os.Stat(candidate); err != nil {
			return cfg, nil
		}
		path = candidate
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to <DataDir>/enchanter_config.json.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.DataDir, configFileName), data, 0o600)
}

// Network returns the settings for a decimal chain ID string.
func (c *Config) Network(chainID string) (NetworkConfig, bool) {
	nc, ok := c.Networks[chainID]
	return nc, ok
}
