// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomstore persists the bridge's room mappings.
//
// An [Entry] links a Matrix room to a room on the remote network. Both
// sides are optional (a freshly plumbed Matrix room may not have its
// remote half yet) and both carry free-form data the bridge needs to
// operate the link. An entry's ID is assigned once, usually by
// [EntryID] of the two sides, and is not recomputed when a side
// changes: an entry repointed at an upgraded room keeps its ID.
//
// [Store] keeps entries in SQLite through lib/sqlitepool. The indexed
// columns (matrix_room_id, remote_id) are derived from the entry; the
// entry itself is stored as a deterministic CBOR payload via lib/codec
// so new fields need no schema change.
package roomstore
