// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"fmt"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/messaging"
)

// TombstoneEvent is an m.room.tombstone seen in RoomID.
type TombstoneEvent struct {
	RoomID            ref.RoomID
	Sender            ref.UserID
	ReplacementRoomID ref.RoomID
}

// InviteEvent is an invite for the bot into RoomID.
type InviteEvent struct {
	RoomID ref.RoomID

	// Sender is the inviting user. Optional; when set, its server is
	// passed as a join hint.
	Sender ref.UserID
}

// TombstoneFromEvent extracts a TombstoneEvent from a Matrix event in
// roomID. Events from /sync omit room_id, so the room is passed in.
func TombstoneFromEvent(roomID ref.RoomID, event messaging.Event) (TombstoneEvent, error) {
	if event.Type != ref.EventTypeTombstone {
		return TombstoneEvent{}, fmt.Errorf("upgrade: event %s has type %q, want %q",
			event.EventID, event.Type, ref.EventTypeTombstone)
	}
	if !event.IsState() || *event.StateKey != "" {
		return TombstoneEvent{}, fmt.Errorf("upgrade: tombstone %s is not a state event with an empty state key", event.EventID)
	}
	raw := event.ContentString("replacement_room")
	if raw == "" {
		return TombstoneEvent{}, fmt.Errorf("upgrade: tombstone %s has no replacement_room", event.EventID)
	}
	replacement, err := ref.ParseRoomID(raw)
	if err != nil {
		return TombstoneEvent{}, fmt.Errorf("upgrade: tombstone %s: replacement_room: %w", event.EventID, err)
	}
	return TombstoneEvent{
		RoomID:            roomID,
		Sender:            event.Sender,
		ReplacementRoomID: replacement,
	}, nil
}
