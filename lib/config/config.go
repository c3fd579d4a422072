// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Remora processes.
//
// Configuration is loaded from a single file specified by:
//   - REMORA_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The file is YAML;
// .json and .jsonc files are accepted too (comments and trailing
// commas are stripped before parsing).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Remora.
type Config struct {
	// Host configures the privileged process serving objects.
	Host HostConfig `yaml:"host"`

	// Consumer configures the unprivileged process holding stubs.
	Consumer ConsumerConfig `yaml:"consumer"`
}

// HostConfig configures the object host.
type HostConfig struct {
	// SocketPath is the Unix socket the host serves on.
	// Default: /run/remora/host.sock
	SocketPath string `yaml:"socket_path"`
}

// ConsumerConfig configures the proxy side.
type ConsumerConfig struct {
	// SocketPath is the Unix socket to reach the host on. Defaults to
	// the host's socket path when empty.
	SocketPath string `yaml:"socket_path"`

	// SweepInterval is the release-sweep cadence as a Go duration
	// string ("5s", "1m"). Default: 5s.
	SweepInterval string `yaml:"sweep_interval"`
}

// Default returns the default configuration. These defaults exist so
// every field has a sensible value before the file is merged in; the
// config file remains the source of truth.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			SocketPath: "/run/remora/host.sock",
		},
		Consumer: ConsumerConfig{
			SweepInterval: "5s",
		},
	}
}

// Load loads configuration from the REMORA_CONFIG environment
// variable. There are no fallbacks: if REMORA_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("REMORA_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("REMORA_CONFIG environment variable not set; " +
			"set it to the path of your remora config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults. Environment variables do not override file
// values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// YAML is a JSON superset, so stripped JSONC parses directly.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Consumer.SocketPath == "" {
		cfg.Consumer.SocketPath = cfg.Host.SocketPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors that would only
// surface later at runtime.
func (c *Config) Validate() error {
	if c.Host.SocketPath == "" {
		return fmt.Errorf("host.socket_path must not be empty")
	}
	if _, err := c.SweepInterval(); err != nil {
		return err
	}
	return nil
}

// SweepInterval parses the consumer's sweep cadence.
func (c *Config) SweepInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Consumer.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("consumer.sweep_interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("consumer.sweep_interval must be positive, got %s", c.Consumer.SweepInterval)
	}
	return interval, nil
}
