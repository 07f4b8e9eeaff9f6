package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the console configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Operator OperatorConfig `yaml:"operator"`
	Paths    PathsConfig    `yaml:"paths"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// ServerConfig holds backend connection settings.
type ServerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// OperatorConfig describes the operator identity. The permission map
// is the authoritative permission vocabulary for the whole session:
// every user entity received from the server carries exactly this key
// set.
type OperatorConfig struct {
	Username    string          `yaml:"username"`
	Permissions map[string]bool `yaml:"permissions"`
}

// PathsConfig holds filesystem paths for local data.
type PathsConfig struct {
	Data    string `yaml:"data"`
	History string `yaml:"history"`
	Scripts string `yaml:"scripts"`
}

// TimeoutsConfig holds channel timing settings.
type TimeoutsConfig struct {
	Reconnect time.Duration `yaml:"reconnect"`
	Request   time.Duration `yaml:"request"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Server.URL == "" {
		return nil, fmt.Errorf("config %s: server.url is required", path)
	}
	if len(cfg.Operator.Permissions) == 0 {
		return nil, fmt.Errorf("config %s: operator.permissions must not be empty", path)
	}

	return cfg, nil
}

// Defaults returns a config with every field set to its default value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://127.0.0.1:8080/api/socket",
		},
		// Permissions have no default: the operator's permission map
		// is the session's permission vocabulary and must come from
		// the config file.
		Operator: OperatorConfig{
			Username: "admin",
		},
		Paths: PathsConfig{
			Data:    "./data",
			History: "./data/history.db",
			Scripts: "./scripts",
		},
		Timeouts: TimeoutsConfig{
			Reconnect: 5 * time.Second,
			Request:   10 * time.Second,
		},
	}
}
