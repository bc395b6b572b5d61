// Package config provides YAML-based configuration loading for Corkboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Corkboard configuration, loaded from corkboard.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Stream    StreamConfig    `yaml:"stream"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// StreamConfig controls live event subscriptions.
type StreamConfig struct {
	Buffer    int           `yaml:"buffer"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// WebhookConfig controls outbound delivery.
type WebhookConfig struct {
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue_size"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// RateLimitConfig bounds board creation per client address.
type RateLimitConfig struct {
	BoardCreates int           `yaml:"board_creates"`
	Window       time.Duration `yaml:"window"`
}

// EventsConfig controls event enrichment.
type EventsConfig struct {
	RecentComments int `yaml:"recent_comments"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "corkboard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "corkboard"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Stream.Buffer == 0 {
		c.Stream.Buffer = 256
	}
	if c.Stream.Heartbeat == 0 {
		c.Stream.Heartbeat = 15 * time.Second
	}
	if c.Webhooks.Workers == 0 {
		c.Webhooks.Workers = 4
	}
	if c.Webhooks.QueueSize == 0 {
		c.Webhooks.QueueSize = 1024
	}
	if c.Webhooks.Timeout == 0 {
		c.Webhooks.Timeout = 10 * time.Second
	}
	if c.Webhooks.FailureThreshold == 0 {
		c.Webhooks.FailureThreshold = 10
	}
	if c.RateLimit.BoardCreates == 0 {
		c.RateLimit.BoardCreates = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Hour
	}
	if c.Events.RecentComments == 0 {
		c.Events.RecentComments = 5
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not supported (json, console)", c.Log.Format))
	}
	if c.Stream.Buffer < 2 {
		errs = append(errs, "stream.buffer must be at least 2")
	}
	if c.Stream.Heartbeat < 0 {
		errs = append(errs, "stream.heartbeat must be positive")
	}
	if c.Webhooks.Workers < 0 {
		errs = append(errs, "webhooks.workers must be positive")
	}
	if c.Webhooks.QueueSize < 0 {
		errs = append(errs, "webhooks.queue_size must be positive")
	}
	if c.Webhooks.Timeout < 0 {
		errs = append(errs, "webhooks.timeout must be positive")
	}
	if c.Webhooks.FailureThreshold < 0 {
		errs = append(errs, "webhooks.failure_threshold must be positive")
	}
	if c.RateLimit.BoardCreates < 0 {
		errs = append(errs, "rate_limit.board_creates must be positive")
	}
	if c.RateLimit.Window < 0 {
		errs = append(errs, "rate_limit.window must be positive")
	}
	if c.Events.RecentComments < 0 {
		errs = append(errs, "events.recent_comments must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
