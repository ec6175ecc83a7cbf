// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"maps"
	"sync"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// Registry tracks upgrades waiting for an invite, keyed by replacement
// room. Safe for concurrent use.
//
// Entries live until consumed. A replacement room that never invites
// the bridge stays registered for the lifetime of the Registry.
type Registry struct {
	mu      sync.Mutex
	pending map[ref.RoomID]ref.RoomID
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[ref.RoomID]ref.RoomID)}
}

// Register records that oldRoomID is waiting to migrate into
// newRoomID. If newRoomID was already registered, the earlier source
// room is replaced and returned.
func (r *Registry) Register(newRoomID, oldRoomID ref.RoomID) (previous ref.RoomID, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, replaced = r.pending[newRoomID]
	r.pending[newRoomID] = oldRoomID
	return previous, replaced
}

// Consume removes newRoomID and returns the room waiting on it. For a
// given registration exactly one caller observes ok == true.
func (r *Registry) Consume(newRoomID ref.RoomID) (oldRoomID ref.RoomID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldRoomID, ok = r.pending[newRoomID]
	if ok {
		delete(r.pending, newRoomID)
	}
	return oldRoomID, ok
}

// Len returns the number of pending upgrades.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Pending returns a snapshot of replacement room to source room.
func (r *Registry) Pending() map[ref.RoomID]ref.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.pending)
}
