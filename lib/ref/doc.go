// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable Matrix identifiers for
// the bridge: room IDs, user IDs, server names, and event types.
//
// Identifiers arrive from the homeserver (sync responses, tombstone
// content, membership lists) as raw strings and are parsed into these
// types at the boundary. Past that boundary, code never handles a bare
// string where a room or user is meant, which keeps a room ID from
// being passed where a user ID is expected.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they serialize as their canonical string form in JSON (sync
// responses, map keys) and CBOR (the room store payload).
package ref
