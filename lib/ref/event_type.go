// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state or timeline event type. Event
// types are opaque strings; the named type only keeps them from being
// confused with state keys or room IDs.
type EventType string

// String returns the event type string (e.g., "m.room.tombstone").
func (t EventType) String() string { return string(t) }

// Standard Matrix event types the bridge reacts to.
const (
	EventTypeTombstone EventType = "m.room.tombstone"
	EventTypeMember    EventType = "m.room.member"
	EventTypeCreate    EventType = "m.room.create"
)
