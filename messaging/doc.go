// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the subset of the Matrix client-server API
// that the bridge needs to carry rooms across upgrades.
//
// [Client] holds the homeserver URL and HTTP transport. An appservice
// bridge authenticates with a single appservice token:
// [Client.AppServiceSession] returns the [DirectSession] for the bridge
// bot, and [DirectSession.As] derives a session that acts as one of the
// bridge's ghosts by adding the user_id query parameter (appservice
// identity assertion). Derived sessions share the parent's token and
// do not own it; only the bot session's Close releases it.
//
// The token lives in a secret.Buffer (mmap-backed, locked against swap,
// excluded from core dumps) and is copied to the heap only when the
// Authorization header is built.
//
// Operations: JoinRoom (with server_name routing hints), LeaveRoom,
// JoinedMembers, Sync, and WhoAmI.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code and HTTP status. [IsMatrixError] tests for a specific
// code; the room-upgrade logic uses it to tell an M_FORBIDDEN join
// (waiting for an invite) apart from every other failure.
package messaging
