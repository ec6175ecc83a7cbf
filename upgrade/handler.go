// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// Handler runs room upgrade migrations. OnTombstone and OnInvite are
// safe to call concurrently; each call drives one room pair and
// returns once that pair is parked or finished.
type Handler struct {
	identities Identities
	registry   *Registry
	entries    *entryMigrator
	ghosts     *ghostRelocator
	notifier   MigrationNotifier
	onComplete func(Result)
	logger     *slog.Logger

	migrateEntries bool
	migrateGhosts  bool

	background sync.WaitGroup
}

// NewHandler creates a Handler. store may be nil only when entry
// migration is disabled.
func NewHandler(identities Identities, store EntryStore, options Options) (*Handler, error) {
	if identities == nil {
		return nil, fmt.Errorf("upgrade: identities are required")
	}
	if store == nil && !options.DisableEntryMigration {
		return nil, fmt.Errorf("upgrade: an entry store is required unless entry migration is disabled")
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rewriter := options.Rewriter
	if rewriter == nil {
		rewriter = EntryRewriterFunc(RepointEntry)
	}

	handler := &Handler{
		identities:     identities,
		registry:       NewRegistry(),
		notifier:       options.Notifier,
		onComplete:     options.OnComplete,
		logger:         logger,
		migrateEntries: !options.DisableEntryMigration,
		migrateGhosts:  !options.DisableGhostMigration,
	}
	handler.entries = &entryMigrator{
		store:    store,
		rewriter: rewriter,
		logger:   logger,
	}
	handler.ghosts = &ghostRelocator{
		identities: identities,
		logger:     logger,
		background: &handler.background,
	}
	return handler, nil
}

// Pending returns a snapshot of upgrades waiting for an invite, keyed
// by replacement room.
func (h *Handler) Pending() map[ref.RoomID]ref.RoomID {
	return h.registry.Pending()
}

// Wait blocks until background work (the bot leaving old rooms) has
// finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

// OnTombstone starts the migration of event.RoomID into its
// replacement. It returns false when the event names no usable
// replacement room and true otherwise, whatever the outcome.
func (h *Handler) OnTombstone(ctx context.Context, event TombstoneEvent) bool {
	if event.ReplacementRoomID.IsZero() || event.RoomID.IsZero() || event.ReplacementRoomID == event.RoomID {
		h.logger.Warn("ignoring tombstone without a distinct replacement room",
			"room_id", event.RoomID,
			"replacement_room_id", event.ReplacementRoomID,
		)
		return false
	}

	oldRoomID, newRoomID := event.RoomID, event.ReplacementRoomID
	logger := h.logger.With("old_room_id", oldRoomID, "new_room_id", newRoomID)
	logger.Info("room tombstoned", "state", StateTombstoned, "sender", event.Sender)

	result, err := attemptJoin(ctx, h.identities.Bot(), newRoomID, joinHint(event.Sender))
	if err != nil {
		logger.Error("joining replacement room failed", "error", err)
		h.finish(Result{
			OldRoomID: oldRoomID,
			NewRoomID: newRoomID,
			State:     StateFailed,
			Err:       fmt.Errorf("upgrade: joining %s: %w", newRoomID, err),
		})
		return true
	}

	if result == joinDenied {
		if previous, replaced := h.registry.Register(newRoomID, oldRoomID); replaced && previous != oldRoomID {
			logger.Warn("replacement room was already awaiting an invite for another room",
				"previous_old_room_id", previous,
			)
		}
		logger.Info("join denied, waiting for invite", "state", StateAwaitingInvite)
		return true
	}

	h.migrate(ctx, logger, oldRoomID, newRoomID)
	return true
}

// OnInvite resumes a migration parked on the invited room. It returns
// false when no migration is waiting on event.RoomID; the invite is
// then none of this handler's business.
func (h *Handler) OnInvite(ctx context.Context, event InviteEvent) bool {
	oldRoomID, ok := h.registry.Consume(event.RoomID)
	if !ok {
		return false
	}

	newRoomID := event.RoomID
	logger := h.logger.With("old_room_id", oldRoomID, "new_room_id", newRoomID)
	logger.Info("invited to replacement room", "state", StateJoining, "sender", event.Sender)

	result, err := attemptJoin(ctx, h.identities.Bot(), newRoomID, joinHint(event.Sender))
	if err == nil && result == joinDenied {
		err = ErrJoinDenied
	}
	if err != nil {
		logger.Error("joining replacement room after invite failed", "error", err)
		h.finish(Result{
			OldRoomID: oldRoomID,
			NewRoomID: newRoomID,
			State:     StateFailed,
			Err:       fmt.Errorf("upgrade: joining %s after invite: %w", newRoomID, err),
		})
		return true
	}

	h.migrate(ctx, logger, oldRoomID, newRoomID)
	return true
}

// migrate runs everything after the bot has joined the replacement
// room and reports the terminal result.
func (h *Handler) migrate(ctx context.Context, logger *slog.Logger, oldRoomID, newRoomID ref.RoomID) {
	result := Result{OldRoomID: oldRoomID, NewRoomID: newRoomID, State: StateFailed}
	defer func() { h.finish(result) }()

	if h.migrateEntries {
		logger.Info("migrating entries", "state", StateEntriesMigrating)
		migrated, err := h.entries.migrate(ctx, oldRoomID, newRoomID)
		if err != nil {
			logger.Error("entry migration failed", "error", err)
			result.Err = err
			return
		}
		if !migrated {
			logger.Error("no entries migrated, abandoning upgrade")
			result.Err = ErrNoEntriesMigrated
			return
		}
		result.Outcome.MigratedEntries = true
	}

	if h.notifier != nil {
		if err := h.notifier.RoomMigrated(ctx, oldRoomID, newRoomID); err != nil {
			logger.Error("room migrated notification failed", "error", err)
			result.Err = fmt.Errorf("upgrade: room migrated notification: %w", err)
			return
		}
	}

	if h.migrateGhosts {
		logger.Info("relocating ghosts", "state", StateGhostsMigrating)
		if err := h.ghosts.relocate(ctx, oldRoomID, newRoomID); err != nil {
			logger.Error("ghost relocation failed", "error", err)
			result.Err = err
			return
		}
		result.Outcome.MigratedGhosts = true
	}

	result.State = StateComplete
	logger.Info("room upgrade complete",
		"state", StateComplete,
		"migrated_entries", result.Outcome.MigratedEntries,
		"migrated_ghosts", result.Outcome.MigratedGhosts,
	)
}

func (h *Handler) finish(result Result) {
	if h.onComplete != nil {
		h.onComplete(result)
	}
}
