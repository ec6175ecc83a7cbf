// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge feeds room upgrade events from the bot's Matrix /sync
// stream into an upgrade handler.
//
// [Bridge.Run] performs an initial sync, dispatches what it finds, and
// then long-polls for incremental batches, backing off exponentially on
// transient errors. Each batch goes through [Bridge.HandleSync]:
//
//   - m.room.tombstone state in joined rooms (from the state section
//     or from timeline events carrying a state key) is dispatched to
//     OnTombstone. Tombstones of one batch run concurrently and the
//     batch waits for them, so a denial is registered before any later
//     invite is seen.
//   - rooms in rooms.invite are dispatched to OnInvite. The inviter is
//     read from the bot's m.room.member event in the invite state and
//     its server becomes the join hint.
//
// [Identities] adapts an appservice [messaging.DirectSession] to the
// upgrade package: the bot acts as itself and each ghost is reached by
// masquerading with ?user_id=.
package bridge
