// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
homeserver_url: https://matrix.example.org
server_name: example.org
appservice:
  bot_user_id: "@bridge:example.org"
  as_token_file: /run/secrets/as_token
  ghost_user_pattern: "@remote_.+:example\\.org"
database:
  path: /var/lib/bridge/rooms.db
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Upgrade.MigrateGhosts {
		t.Error("expected migrate_ghosts=true by default")
	}
	if !cfg.Upgrade.MigrateStoreEntries {
		t.Error("expected migrate_store_entries=true by default")
	}
	if cfg.Sync.TimeoutMilliseconds != 30000 {
		t.Errorf("expected timeout_ms=30000, got %d", cfg.Sync.TimeoutMilliseconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_RequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when BUREAU_BRIDGE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "BUREAU_BRIDGE_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, writeConfig(t, "bridge.yaml", validYAML))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomeserverURL != "https://matrix.example.org" {
		t.Errorf("homeserver_url = %q", cfg.HomeserverURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_KeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "bridge.yaml", validYAML+`
upgrade:
  migrate_ghosts: false
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Upgrade.MigrateGhosts {
		t.Error("migrate_ghosts should be overridden to false")
	}
	if !cfg.Upgrade.MigrateStoreEntries {
		t.Error("migrate_store_entries should keep its default")
	}
	if cfg.Sync.MaxBackoff != "30s" {
		t.Errorf("max_backoff = %q, want default", cfg.Sync.MaxBackoff)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "bridge.jsonc", `{
		// Homeserver the appservice is registered with.
		"homeserver_url": "http://localhost:6167",
		"server_name": "local",
		"appservice": {
			"bot_user_id": "@bridge:local",
			"as_token_file": "-",
			"ghost_user_pattern": "@remote_.+:local",
		},
		"sync": {"timeout_ms": 1000, "max_backoff": "5s"},
	}`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	backoff, err := cfg.MaxBackoff()
	if err != nil || backoff != 5*time.Second {
		t.Errorf("MaxBackoff = %v, %v", backoff, err)
	}
	if cfg.Sync.TimeoutMilliseconds != 1000 {
		t.Errorf("timeout_ms = %d", cfg.Sync.TimeoutMilliseconds)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_ExpandsPaths(t *testing.T) {
	t.Setenv("STATE_DIRECTORY", "/srv/state")
	t.Setenv("BRIDGE_SECRETS", "")

	cfg, err := LoadFile(writeConfig(t, "bridge.yaml", `
appservice:
  as_token_file: ${BRIDGE_SECRETS:-/etc/bridge}/as_token
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Path != "/srv/state/rooms.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.AppService.ASTokenFile != "/etc/bridge/as_token" {
		t.Errorf("as_token_file = %q", cfg.AppService.ASTokenFile)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("PRESENT", "value")
	t.Setenv("A", "first")
	t.Setenv("B", "second")
	t.Setenv("MISSING", "")

	tests := []struct {
		input    string
		expected string
	}{
		{"${MISSING:-default}", "default"},
		{"${PRESENT:-default}", "value"},
		{"${A}/${B}", "first/second"},
		{"${MISSING}", ""},
		{"no variables here", "no variables here"},
	}

	for _, tt := range tests {
		if result := expandVars(tt.input); result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.HomeserverURL = "https://matrix.example.org"
		cfg.ServerName = "example.org"
		cfg.AppService = AppServiceConfig{
			BotUserID:        "@bridge:example.org",
			ASTokenFile:      "/run/secrets/as_token",
			GhostUserPattern: "@remote_.+:example\\.org",
		}
		cfg.Database.Path = "/tmp/rooms.db"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing homeserver", func(c *Config) { c.HomeserverURL = "" }, "homeserver_url is required"},
		{"bad scheme", func(c *Config) { c.HomeserverURL = "ftp://x" }, "http or https"},
		{"bad server name", func(c *Config) { c.ServerName = "" }, "server_name"},
		{"bad bot user", func(c *Config) { c.AppService.BotUserID = "bridge" }, "appservice.bot_user_id"},
		{"missing token file", func(c *Config) { c.AppService.ASTokenFile = "" }, "as_token_file is required"},
		{"missing ghost pattern", func(c *Config) { c.AppService.GhostUserPattern = "" }, "ghost_user_pattern is required"},
		{"bad ghost pattern", func(c *Config) { c.AppService.GhostUserPattern = "(" }, "ghost_user_pattern"},
		{"negative pool", func(c *Config) { c.Database.PoolSize = -1 }, "pool_size"},
		{"bad backoff", func(c *Config) { c.Sync.MaxBackoff = "soon" }, "max_backoff"},
		{"zero backoff", func(c *Config) { c.Sync.MaxBackoff = "0s" }, "must be positive"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	err := Default().Validate()
	if err == nil {
		t.Fatal("expected errors for empty config")
	}
	for _, want := range []string{"homeserver_url", "server_name", "bot_user_id", "as_token_file"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestGhostPattern(t *testing.T) {
	cfg := Default()
	cfg.AppService.GhostUserPattern = "@remote_.+:example\\.org"
	pattern, err := cfg.GhostPattern()
	if err != nil {
		t.Fatalf("GhostPattern: %v", err)
	}
	if !pattern.MatchString("@remote_alice:example.org") {
		t.Error("pattern should match a ghost")
	}
	if pattern.MatchString("@remote_alice:example.org.evil") {
		t.Error("pattern should be anchored at the end")
	}
	if pattern.MatchString("@x@remote_alice:example.org") {
		t.Error("pattern should be anchored at the start")
	}

	cfg.AppService.GhostUserPattern = ""
	cfg.Upgrade.MigrateGhosts = false
	pattern, err = cfg.GhostPattern()
	if err != nil || pattern != nil {
		t.Errorf("empty pattern with ghosts disabled = %v, %v", pattern, err)
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel = %v, %v", level, err)
	}
}
