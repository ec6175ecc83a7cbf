// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-bridge follows Matrix room upgrades on behalf of an appservice
// bridge. When a bridged room is tombstoned it joins the replacement
// room (waiting for an invite if the join is refused), repoints the
// persisted room mappings, and moves the bridge's ghosts across.
//
// Configuration is a single YAML (or JSONC) file named by --config or
// BUREAU_BRIDGE_CONFIG. The appservice token is read from the file the
// config names and held in locked memory for the process lifetime.
package main
