// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "remora.yaml", `
host:
  socket_path: /tmp/test.sock
consumer:
  sweep_interval: 30s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Host.SocketPath != "/tmp/test.sock" {
		t.Errorf("host socket = %q", cfg.Host.SocketPath)
	}
	// Consumer socket defaults to the host's.
	if cfg.Consumer.SocketPath != "/tmp/test.sock" {
		t.Errorf("consumer socket = %q", cfg.Consumer.SocketPath)
	}
	interval, err := cfg.SweepInterval()
	if err != nil {
		t.Fatalf("SweepInterval: %v", err)
	}
	if interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s", interval)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "remora.jsonc", `{
  // comments are allowed
  "host": {"socket_path": "/tmp/jsonc.sock"},
  "consumer": {"sweep_interval": "10s"},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Host.SocketPath != "/tmp/jsonc.sock" {
		t.Errorf("host socket = %q", cfg.Host.SocketPath)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, "remora.yaml", "{}\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Host.SocketPath != "/run/remora/host.sock" {
		t.Errorf("host socket = %q", cfg.Host.SocketPath)
	}
	interval, err := cfg.SweepInterval()
	if err != nil {
		t.Fatalf("SweepInterval: %v", err)
	}
	if interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", interval)
	}
}

func TestLoadFileBadInterval(t *testing.T) {
	path := writeConfig(t, "remora.yaml", `
consumer:
  sweep_interval: sometimes
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("unparseable sweep_interval should fail validation")
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("REMORA_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("Load without REMORA_CONFIG should fail")
	}
}

func TestLoadUsesEnvVar(t *testing.T) {
	path := writeConfig(t, "remora.yaml", "host:\n  socket_path: /tmp/env.sock\n")
	t.Setenv("REMORA_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.SocketPath != "/tmp/env.sock" {
		t.Errorf("host socket = %q", cfg.Host.SocketPath)
	}
}
