// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/lib/roomstore"
	"github.com/bureau-foundation/roomupgrade/messaging"
)

// Intent is one Matrix identity the bridge can act as: the bot or one
// of its ghosts. A join refused by the homeserver must surface as a
// *messaging.MatrixError with code M_FORBIDDEN.
type Intent interface {
	JoinRoom(ctx context.Context, roomID ref.RoomID, via []ref.ServerName) error
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error
}

// Identities provides the bridge's intents and the membership queries
// ghost relocation needs.
type Identities interface {
	// Bot returns the bridge's primary identity.
	Bot() Intent

	// Ghost returns the intent for a bridge-controlled user.
	Ghost(userID ref.UserID) Intent

	// JoinedMembers lists the users joined to roomID, as seen by the bot.
	JoinedMembers(ctx context.Context, roomID ref.RoomID) (map[ref.UserID]messaging.JoinedMember, error)

	// IsGhost reports whether userID is controlled by the bridge.
	IsGhost(userID ref.UserID) bool
}

// EntryStore is the subset of the room mapping store that migration
// reads and writes.
type EntryStore interface {
	EntriesByRoomID(ctx context.Context, roomID ref.RoomID) ([]roomstore.Entry, error)
	Upsert(ctx context.Context, entry roomstore.Entry) error
	RemoveByID(ctx context.Context, id string) error
}

var _ EntryStore = (*roomstore.Store)(nil)

// ErrSkipEntry is returned by an EntryRewriter to leave an entry
// untouched. Skipped entries do not count as migrated.
var ErrSkipEntry = errors.New("upgrade: skip entry")

// EntryRewriter produces the replacement for an entry anchored to an
// upgraded room. Returning an entry with a different ID moves it: the
// old ID is removed before the new entry is stored.
type EntryRewriter interface {
	RewriteEntry(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error)
}

// EntryRewriterFunc adapts a function to EntryRewriter.
type EntryRewriterFunc func(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error)

// RewriteEntry calls f.
func (f EntryRewriterFunc) RewriteEntry(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error) {
	return f(entry, newRoomID)
}

// RepointEntry is the default EntryRewriter. It points the entry's
// Matrix side at newRoomID and keeps the name, topic, extras, remote
// side, and ID.
func RepointEntry(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error) {
	if entry.Matrix == nil {
		return roomstore.Entry{}, fmt.Errorf("upgrade: entry %q has no Matrix room", entry.ID)
	}
	rewritten := entry.Clone()
	rewritten.Matrix.RoomID = newRoomID
	return rewritten, nil
}

// MigrationNotifier is told when a room's entries have moved, before
// any ghost is relocated. RoomMigrated blocks until the collaborator's
// setup for the new room is done; an error fails the migration.
type MigrationNotifier interface {
	RoomMigrated(ctx context.Context, oldRoomID, newRoomID ref.RoomID) error
}

// MigrationNotifierFunc adapts a function to MigrationNotifier.
type MigrationNotifierFunc func(ctx context.Context, oldRoomID, newRoomID ref.RoomID) error

// RoomMigrated calls f.
func (f MigrationNotifierFunc) RoomMigrated(ctx context.Context, oldRoomID, newRoomID ref.RoomID) error {
	return f(ctx, oldRoomID, newRoomID)
}

// Options configures a Handler. The zero value migrates both entries
// and ghosts, rewrites entries with RepointEntry, and logs to
// slog.Default().
type Options struct {
	// DisableGhostMigration leaves ghosts (and the bot) in the old room.
	DisableGhostMigration bool

	// DisableEntryMigration leaves store entries untouched. The
	// zero-entries check is skipped as well.
	DisableEntryMigration bool

	// Rewriter overrides RepointEntry.
	Rewriter EntryRewriter

	// Notifier is called between entry migration and ghost relocation.
	Notifier MigrationNotifier

	// OnComplete receives every pair that reaches Complete or Failed.
	// It may be called concurrently for different pairs.
	OnComplete func(Result)

	Logger *slog.Logger
}

// State is a room pair's position in the migration.
type State int

const (
	StateTombstoned State = iota
	StateAwaitingInvite
	StateJoining
	StateEntriesMigrating
	StateGhostsMigrating
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateTombstoned:       "tombstoned",
	StateAwaitingInvite:   "awaiting_invite",
	StateJoining:          "joining",
	StateEntriesMigrating: "entries_migrating",
	StateGhostsMigrating:  "ghosts_migrating",
	StateComplete:         "complete",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in structured logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome records which parts of a migration took effect.
type Outcome struct {
	MigratedEntries bool
	MigratedGhosts  bool
}

// Result is the terminal report for one room pair.
type Result struct {
	OldRoomID ref.RoomID
	NewRoomID ref.RoomID

	// State is StateComplete or StateFailed.
	State State

	Outcome Outcome

	// Err is the reason for StateFailed, nil otherwise.
	Err error
}

// Errors reported in Result.Err.
var (
	// ErrJoinDenied means the replacement room refused the bot even
	// after an invite arrived.
	ErrJoinDenied = errors.New("upgrade: join to replacement room denied")

	// ErrNoEntriesMigrated means entry migration was enabled and not a
	// single entry moved.
	ErrNoEntriesMigrated = errors.New("upgrade: no entries migrated")
)
