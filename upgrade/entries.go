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
)

// entryMigrator rewrites the store entries of an upgraded room.
type entryMigrator struct {
	store    EntryStore
	rewriter EntryRewriter
	logger   *slog.Logger
}

// migrate moves every entry of oldRoomID to newRoomID and reports
// whether at least one entry moved. Entries are independent: a failure
// on one is logged and the rest still run. Only a failure to list the
// entries at all is returned as an error.
func (m *entryMigrator) migrate(ctx context.Context, oldRoomID, newRoomID ref.RoomID) (bool, error) {
	entries, err := m.store.EntriesByRoomID(ctx, oldRoomID)
	if err != nil {
		return false, fmt.Errorf("upgrade: listing entries for %s: %w", oldRoomID, err)
	}

	migrated := 0
	for _, entry := range entries {
		err := m.migrateEntry(ctx, entry, newRoomID)
		switch {
		case err == nil:
			migrated++
		case errors.Is(err, ErrSkipEntry):
			m.logger.Debug("entry skipped by rewriter",
				"entry_id", entry.ID,
				"old_room_id", oldRoomID,
			)
		default:
			m.logger.Error("entry migration failed",
				"entry_id", entry.ID,
				"old_room_id", oldRoomID,
				"new_room_id", newRoomID,
				"error", err,
			)
		}
	}

	m.logger.Info("entry migration finished",
		"old_room_id", oldRoomID,
		"new_room_id", newRoomID,
		"entries", len(entries),
		"migrated", migrated,
	)
	return migrated > 0, nil
}

func (m *entryMigrator) migrateEntry(ctx context.Context, entry roomstore.Entry, newRoomID ref.RoomID) error {
	rewritten, err := m.rewriter.RewriteEntry(entry.Clone(), newRoomID)
	if err != nil {
		return err
	}
	if rewritten.ID == "" {
		return fmt.Errorf("rewritten entry has an empty ID")
	}
	if rewritten.ID != entry.ID {
		if err := m.store.RemoveByID(ctx, entry.ID); err != nil {
			return fmt.Errorf("removing old entry: %w", err)
		}
	}
	if err := m.store.Upsert(ctx, rewritten); err != nil {
		return fmt.Errorf("storing rewritten entry %q: %w", rewritten.ID, err)
	}
	return nil
}
