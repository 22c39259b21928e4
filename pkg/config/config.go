// Package config loads server configuration from YAML files and
// environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
)

// Defaults.
const (
	DefaultPort          = 8080
	DefaultMaxBodySize   = 50_000
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = 2 * time.Hour
)

// Config is the full server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	// LogFormat is the log output format (text, json).
	LogFormat string `yaml:"logFormat"`

	// MaxBodySize caps accepted capture bodies, in bytes.
	MaxBodySize int64 `yaml:"maxBodySize"`

	// Retention is how long a collector outlives its latest capture
	// before the reaper may reclaim it. Duration string, e.g. "24h".
	Retention string `yaml:"retention"`

	// SweepInterval is how often the reaper runs. Duration string.
	SweepInterval string `yaml:"sweepInterval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          DefaultPort,
		LogLevel:      "info",
		LogFormat:     "text",
		MaxBodySize:   DefaultMaxBodySize,
		Retention:     DefaultRetention.String(),
		SweepInterval: DefaultSweepInterval.String(),
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides (REQSINK_PORT, REQSINK_LOG_LEVEL,
// REQSINK_LOG_FORMAT, REQSINK_MAX_BODY_SIZE). An empty path skips the
// file and uses defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REQSINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("REQSINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REQSINK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("REQSINK_MAX_BODY_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBodySize = n
		}
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxBodySize < 1 {
		return fmt.Errorf("maxBodySize must be positive, got %d", c.MaxBodySize)
	}
	if _, err := c.RetentionDuration(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	if _, err := c.SweepIntervalDuration(); err != nil {
		return fmt.Errorf("sweepInterval: %w", err)
	}
	return nil
}

// RetentionDuration parses the retention window.
func (c *Config) RetentionDuration() (time.Duration, error) {
	return parsePositiveDuration(c.Retention, DefaultRetention)
}

// SweepIntervalDuration parses the reaper interval.
func (c *Config) SweepIntervalDuration() (time.Duration, error) {
	return parsePositiveDuration(c.SweepInterval, DefaultSweepInterval)
}

func parsePositiveDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}
