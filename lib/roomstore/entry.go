// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"errors"
	"maps"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// ErrNotFound is returned by Get when no entry has the requested ID.
var ErrNotFound = errors.New("roomstore: entry not found")

// MatrixRoom is the Matrix side of a mapping.
type MatrixRoom struct {
	RoomID ref.RoomID     `cbor:"room_id"`
	Name   string         `cbor:"name,omitempty"`
	Topic  string         `cbor:"topic,omitempty"`
	Extras map[string]any `cbor:"extras,omitempty"`
}

// RemoteRoom is the remote-network side of a mapping. ID is opaque to
// the bridge core.
type RemoteRoom struct {
	ID   string         `cbor:"id"`
	Data map[string]any `cbor:"data,omitempty"`
}

// Entry is one persisted room mapping.
type Entry struct {
	ID     string         `cbor:"id"`
	Matrix *MatrixRoom    `cbor:"matrix,omitempty"`
	Remote *RemoteRoom    `cbor:"remote,omitempty"`
	Data   map[string]any `cbor:"data,omitempty"`
}

// EntryID returns the default ID for an entry linking matrixRoomID and
// remoteID: the two joined by a single space. Either side may be empty.
func EntryID(matrixRoomID ref.RoomID, remoteID string) string {
	return matrixRoomID.String() + " " + remoteID
}

// Clone returns a copy of e that shares no maps or pointers with it.
// Map values are copied shallowly.
func (e Entry) Clone() Entry {
	clone := Entry{
		ID:   e.ID,
		Data: maps.Clone(e.Data),
	}
	if e.Matrix != nil {
		matrix := *e.Matrix
		matrix.Extras = maps.Clone(e.Matrix.Extras)
		clone.Matrix = &matrix
	}
	if e.Remote != nil {
		remote := *e.Remote
		remote.Data = maps.Clone(e.Remote.Data)
		clone.Remote = &remote
	}
	return clone
}

// MatrixRoomID returns the Matrix room the entry points at, or the zero
// RoomID when the entry has no Matrix side.
func (e Entry) MatrixRoomID() ref.RoomID {
	if e.Matrix == nil {
		return ref.RoomID{}
	}
	return e.Matrix.RoomID
}

// RemoteID returns the remote room ID, or "" when the entry has no
// remote side.
func (e Entry) RemoteID() string {
	if e.Remote == nil {
		return ""
	}
	return e.Remote.ID
}
