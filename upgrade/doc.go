// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package upgrade carries a bridged room across a Matrix room upgrade.
//
// When a room is upgraded, the homeserver posts an m.room.tombstone
// state event in the old room naming the replacement room. [Handler]
// reacts to that event by joining the replacement room and then moving
// everything the bridge anchored to the old room ID:
//
//   - the persisted room mappings in the [EntryStore], rewritten to
//     point at the new room,
//   - the bridge-controlled ghosts, which leave the old room and join
//     the new one,
//   - the bridge bot itself, which leaves the old room last.
//
// Replacement rooms are often invite-only. A join rejected with
// M_FORBIDDEN is not a failure: the pair is parked in a [Registry]
// keyed by the replacement room, and the migration resumes when
// [Handler.OnInvite] sees an invite for that room. Every other join
// failure ends the migration for the pair.
//
// Per pair, the migration moves through these states:
//
//	Tombstoned -> AwaitingInvite -> Joining -> EntriesMigrating -> GhostsMigrating -> Complete
//	          \____________________/
//	                 (joined)
//
// with Failed reachable from any of them. Entry migration tolerates
// per-entry failures but fails the pair, before any ghost moves, when
// nothing at all migrated. Nothing is retried: a failed pair is logged
// and reported through [Options].OnComplete.
//
// OnTombstone and OnInvite never return errors. They report only
// whether the event was relevant to a migration.
package upgrade
