// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// Session is the authenticated Matrix surface the bridge consumes.
// Code that only needs to talk to the homeserver should accept a
// Session rather than *DirectSession so tests can substitute a fake.
type Session interface {
	UserID() ref.UserID
	WhoAmI(ctx context.Context) (ref.UserID, error)
	JoinRoom(ctx context.Context, roomID ref.RoomID, via ...ref.ServerName) (ref.RoomID, error)
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error
	JoinedMembers(ctx context.Context, roomID ref.RoomID) (map[ref.UserID]JoinedMember, error)
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
	CloseIdleConnections()
	Close() error
}

var _ Session = (*DirectSession)(nil)
