// Package config loads the supervisor's optional ambient settings: log
// verbosity and the control-socket path. These live outside the
// spec-mandated CLI surface (-i/-o/-q/-h). No command-line flag sets
// either value, so the optional -c overlay is their only source besides
// the defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/tripwire/macd/internal/controlplane"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML overlay accepted via the supervisor's -c
// flag.
type Config struct {
	// LogLevel sets the minimum log severity: "debug", "info", "warn",
	// or "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// SocketPath overrides the control-plane socket's bind path.
	// Defaults to controlplane.DefaultSocketPath when omitted.
	SocketPath string `yaml:"socket_path"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config,
// applies defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible
// defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = controlplane.DefaultSocketPath
	}
}

// validate checks that enumerated fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.SocketPath == "" {
		errs = append(errs, errors.New("socket_path must not be empty"))
	}

	return errors.Join(errs...)
}
