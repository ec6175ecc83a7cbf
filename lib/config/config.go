// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "BUREAU_BRIDGE_CONFIG"

// Config is the bridge configuration.
type Config struct {
	// HomeserverURL is the client-server API base URL of the homeserver
	// the appservice is registered with.
	HomeserverURL string `yaml:"homeserver_url"`

	// ServerName is the homeserver's Matrix server name (the part after
	// the colon in user IDs it owns).
	ServerName string `yaml:"server_name"`

	AppService AppServiceConfig `yaml:"appservice"`
	Database   DatabaseConfig   `yaml:"database"`
	Upgrade    UpgradeConfig    `yaml:"upgrade"`
	Sync       SyncConfig       `yaml:"sync"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AppServiceConfig identifies the bridge to the homeserver.
type AppServiceConfig struct {
	// BotUserID is the appservice's sender_localpart as a full user ID.
	BotUserID string `yaml:"bot_user_id"`

	// ASTokenFile is the path to a file holding the appservice
	// as_token, or "-" for stdin. Only the first line is read.
	ASTokenFile string `yaml:"as_token_file"`

	// GhostUserPattern is a regular expression matching the full user
	// IDs of the ghosts the bridge puppets. It normally mirrors the
	// exclusive users namespace of the appservice registration.
	GhostUserPattern string `yaml:"ghost_user_pattern"`
}

// DatabaseConfig locates the room store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Supports ${VAR:-default}.
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections. Zero uses the
	// pool default.
	PoolSize int `yaml:"pool_size"`
}

// UpgradeConfig toggles the parts of a room upgrade migration.
type UpgradeConfig struct {
	// MigrateGhosts moves bridge-controlled ghosts from the old room
	// to the replacement room. Default true.
	MigrateGhosts bool `yaml:"migrate_ghosts"`

	// MigrateStoreEntries repoints persisted room mappings at the
	// replacement room. Default true.
	MigrateStoreEntries bool `yaml:"migrate_store_entries"`
}

// SyncConfig tunes the /sync long-poll loop.
type SyncConfig struct {
	// TimeoutMilliseconds is the long-poll timeout sent to the
	// homeserver. Default 30000.
	TimeoutMilliseconds int `yaml:"timeout_ms"`

	// MaxBackoff caps the exponential backoff between failed /sync
	// attempts, as a Go duration string. Default "30s".
	MaxBackoff string `yaml:"max_backoff"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string `yaml:"level"`

	// Format is "json" or "text". Default json.
	Format string `yaml:"format"`
}

// Default returns a Config with every optional field at its default.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "${STATE_DIRECTORY:-/var/lib/bureau-bridge}/rooms.db",
		},
		Upgrade: UpgradeConfig{
			MigrateGhosts:       true,
			MigrateStoreEntries: true,
		},
		Sync: SyncConfig{
			TimeoutMilliseconds: 30000,
			MaxBackoff:          "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the config file named by BUREAU_BRIDGE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your bridge config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile reads the config file at path on top of Default and expands
// variables in path fields. Files ending in .json or .jsonc are read as
// JSON with comments and trailing commas; everything else is YAML.
// LoadFile does not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Database.Path = expandVars(c.Database.Path)
	c.AppService.ASTokenFile = expandVars(c.AppService.ASTokenFile)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default} with the environment
// value, or the default when the variable is unset or empty.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the whole configuration and reports every problem
// found, joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.HomeserverURL == "" {
		errs = append(errs, fmt.Errorf("homeserver_url is required"))
	} else if parsed, err := url.Parse(c.HomeserverURL); err != nil {
		errs = append(errs, fmt.Errorf("homeserver_url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("homeserver_url must be http or https, got %q", c.HomeserverURL))
	}

	if _, err := c.Server(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BotUserID(); err != nil {
		errs = append(errs, err)
	}
	if c.AppService.ASTokenFile == "" {
		errs = append(errs, fmt.Errorf("appservice.as_token_file is required"))
	}
	if _, err := c.GhostPattern(); err != nil {
		errs = append(errs, err)
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("database.pool_size must not be negative"))
	}

	if c.Sync.TimeoutMilliseconds < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout_ms must not be negative"))
	}
	if _, err := c.MaxBackoff(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"json", "text"}
	if !contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Server returns the parsed server_name.
func (c *Config) Server() (ref.ServerName, error) {
	server, err := ref.ParseServerName(c.ServerName)
	if err != nil {
		return ref.ServerName{}, fmt.Errorf("server_name: %w", err)
	}
	return server, nil
}

// BotUserID returns the parsed appservice.bot_user_id.
func (c *Config) BotUserID() (ref.UserID, error) {
	userID, err := ref.ParseUserID(c.AppService.BotUserID)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("appservice.bot_user_id: %w", err)
	}
	return userID, nil
}

// GhostPattern compiles appservice.ghost_user_pattern, anchored to
// match whole user IDs. A nil pattern with a nil error means the
// pattern is empty, which is only allowed with ghost migration off.
func (c *Config) GhostPattern() (*regexp.Regexp, error) {
	if c.AppService.GhostUserPattern == "" {
		if c.Upgrade.MigrateGhosts {
			return nil, fmt.Errorf("appservice.ghost_user_pattern is required when upgrade.migrate_ghosts is enabled")
		}
		return nil, nil
	}
	pattern, err := regexp.Compile("^(?:" + c.AppService.GhostUserPattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("appservice.ghost_user_pattern: %w", err)
	}
	return pattern, nil
}

// MaxBackoff returns the parsed sync.max_backoff.
func (c *Config) MaxBackoff() (time.Duration, error) {
	duration, err := time.ParseDuration(c.Sync.MaxBackoff)
	if err != nil {
		return 0, fmt.Errorf("sync.max_backoff: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("sync.max_backoff must be positive, got %s", duration)
	}
	return duration, nil
}

// LogLevel returns the slog level named by logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
