// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge configuration.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_BRIDGE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no environment variables overriding individual
// values.
//
// The file is YAML. Files named *.json or *.jsonc are accepted too:
// comments and trailing commas are stripped with tidwall/jsonc and the
// result is parsed as YAML, of which JSON is a subset.
//
// ${VAR} and ${VAR:-default} are expanded in database.path and
// appservice.as_token_file after loading.
//
// [Config.Validate] reports every problem at once. The typed accessors
// ([Config.BotUserID], [Config.GhostPattern], [Config.MaxBackoff],
// [Config.LogLevel]) parse the raw strings the same way Validate does.
package config
