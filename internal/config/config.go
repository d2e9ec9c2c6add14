package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded from a YAML
// file and overridable by flags in cmd/main.go.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type KitchenConfig struct {
	// SyncEnabled controls whether primary-order changes notify the
	// kitchen mirror. When false a no-op notifier is wired instead.
	SyncEnabled bool `yaml:"sync_enabled"`
}

type AuthConfig struct {
	// JWTSecret enables the bearer-token middleware on mutating
	// catalog routes when non-empty. Token issuance is external.
	JWTSecret string `yaml:"jwt_secret"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, MetricsPort: 9090},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "comanda.db"},
		Kitchen:  KitchenConfig{SyncEnabled: true},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file, filling missing
// values from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("server.port must be positive")
	}
	if cfg.Database.Driver == "" {
		return nil, fmt.Errorf("database.driver is required")
	}
	return cfg, nil
}
