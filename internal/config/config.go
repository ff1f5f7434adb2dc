// Package config loads and saves the CLI configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIBaseURL is the production brokerage API.
	DefaultAPIBaseURL = "https://api.tastyworks.com"

	// DefaultStreamerURL is the production market data websocket.
	DefaultStreamerURL = "wss://tasty-openapi-ws.dxfeed.com/realtime"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "TASTY_CONFIG"
)

// Config holds the CLI configuration.
type Config struct {
	Username    string `yaml:"username"`
	Account     string `yaml:"account"`
	APIBaseURL  string `yaml:"api_base_url"`
	StreamerURL string `yaml:"streamer_url"`
}

// DefaultConfig returns a config with production defaults and no
// credentials.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:  DefaultAPIBaseURL,
		StreamerURL: DefaultStreamerURL,
	}
}

// ConfigDir returns the directory holding the config file:
// $XDG_CONFIG_HOME/tasty, falling back to ~/.config/tasty.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tasty")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "tasty")
	}
	return filepath.Join(home, ".config", "tasty")
}

// ConfigPath returns the config file location: $TASTY_CONFIG if set, else
// ConfigDir()/config.yml.
func ConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.yml")
}

// Load reads the config file at path. A missing file returns defaults;
// fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.StreamerURL == "" {
		cfg.StreamerURL = DefaultStreamerURL
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
// The file is written 0600: it holds the account number and username.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
