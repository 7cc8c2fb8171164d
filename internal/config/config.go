// Package config loads the stagepath tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the global stagepath configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Trace   TraceConfig   `yaml:"trace"`
	Log     LogConfig     `yaml:"log"`
}

// CatalogConfig names the catalogue inputs.
type CatalogConfig struct {
	// File is the YAML catalogue (projects, references, pipelines, dirs).
	File string `yaml:"file"`
	// Stages lists Starlark stage definition files, loaded in order after
	// the built-in catalogue.
	Stages []string `yaml:"stages"`
}

// DaemonConfig controls daemon behavior.
type DaemonConfig struct {
	// Enabled: nil = auto (try daemon, fall back to in-process),
	// true = require daemon, false = always in-process.
	Enabled     *bool  `yaml:"enabled"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// DefaultIdleTimeout is used when no idle_timeout is configured.
const DefaultIdleTimeout = 5 * time.Minute

// IdleTimeoutDuration parses the configured idle timeout or returns the default.
func (d *DaemonConfig) IdleTimeoutDuration() time.Duration {
	if d.IdleTimeout != "" {
		dur, err := time.ParseDuration(d.IdleTimeout)
		if err == nil {
			return dur
		}
	}
	return DefaultIdleTimeout
}

// TraceConfig controls the resolution trace log.
type TraceConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Catalog: CatalogConfig{
			File: "stagepath.yaml",
		},
		Trace: TraceConfig{
			Path: filepath.Join(home, ".local", "share", "stagepath", "trace.jsonl"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config from the standard location
// (~/.config/stagepath/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	path := filepath.Join(home, ".config", "stagepath", "config.yaml")
	return LoadFrom(path)
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Expand ~ in the trace path.
	if cfg.Trace.Path != "" && cfg.Trace.Path[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.Trace.Path = filepath.Join(home, cfg.Trace.Path[1:])
	}

	return cfg, nil
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "stagepath", "config.yaml")
}
