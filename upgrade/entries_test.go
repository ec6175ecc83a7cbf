// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/lib/roomstore"
)

func newEntryMigrator(store EntryStore, rewriter EntryRewriter) *entryMigrator {
	if rewriter == nil {
		rewriter = EntryRewriterFunc(RepointEntry)
	}
	return &entryMigrator{store: store, rewriter: rewriter, logger: discardLogger()}
}

func TestRepointEntry(t *testing.T) {
	original := entryIn(roomA, "remote-1")
	rewritten, err := RepointEntry(original, roomB)
	if err != nil {
		t.Fatalf("RepointEntry: %v", err)
	}
	if rewritten.ID != original.ID {
		t.Errorf("ID changed to %q", rewritten.ID)
	}
	if rewritten.Matrix.RoomID != roomB {
		t.Errorf("room = %v, want %v", rewritten.Matrix.RoomID, roomB)
	}
	if rewritten.Matrix.Name != "general" || rewritten.Matrix.Topic != "remote remote-1" {
		t.Errorf("name/topic not preserved: %+v", rewritten.Matrix)
	}
	if rewritten.Matrix.Extras["bridged"] != true {
		t.Errorf("extras not preserved: %v", rewritten.Matrix.Extras)
	}
	if rewritten.RemoteID() != "remote-1" {
		t.Errorf("remote side not preserved: %+v", rewritten.Remote)
	}
	if original.Matrix.RoomID != roomA {
		t.Error("RepointEntry mutated its input")
	}

	if _, err := RepointEntry(roomstore.Entry{ID: "remote-only"}, roomB); err == nil {
		t.Error("expected error for an entry without a Matrix side")
	}
}

func TestMigrateEntriesDefault(t *testing.T) {
	log := &callLog{}
	first, second := entryIn(roomA, "remote-1"), entryIn(roomA, "remote-2")
	store := newFakeStore(log, first, second, entryIn(roomB, "unrelated"))

	migrated, err := newEntryMigrator(store, nil).migrate(context.Background(), roomA, roomB)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !migrated {
		t.Fatal("migrate reported nothing migrated")
	}

	for _, id := range []string{first.ID, second.ID} {
		entry, ok := store.get(id)
		if !ok {
			t.Fatalf("entry %q missing", id)
		}
		if entry.MatrixRoomID() != roomB {
			t.Errorf("entry %q points at %v, want %v", id, entry.MatrixRoomID(), roomB)
		}
	}
	if removes := log.matching("remove "); len(removes) != 0 {
		t.Errorf("in-place rewrite issued removes: %v", removes)
	}
}

func TestMigrateEntriesIDChangeRemovesFirst(t *testing.T) {
	log := &callLog{}
	original := entryIn(roomA, "remote-1")
	store := newFakeStore(log, original)
	rewriter := EntryRewriterFunc(func(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error) {
		entry.Matrix.RoomID = newRoomID
		entry.ID = roomstore.EntryID(newRoomID, entry.RemoteID())
		return entry, nil
	})

	migrated, err := newEntryMigrator(store, rewriter).migrate(context.Background(), roomA, roomB)
	if err != nil || !migrated {
		t.Fatalf("migrate = %v, %v", migrated, err)
	}

	newID := roomstore.EntryID(roomB, "remote-1")
	removeIndex := log.indexOf("remove " + original.ID)
	upsertIndex := log.indexOf("upsert " + newID)
	if removeIndex < 0 || upsertIndex < 0 || removeIndex > upsertIndex {
		t.Errorf("want remove of old ID before upsert of new ID, calls = %v", log.snapshot())
	}
	if _, ok := store.get(original.ID); ok {
		t.Error("old ID still stored")
	}
	if _, ok := store.get(newID); !ok {
		t.Error("new ID not stored")
	}
}

func TestMigrateEntriesPartialSuccess(t *testing.T) {
	log := &callLog{}
	good := entryIn(roomA, "good")
	badRewrite := entryIn(roomA, "bad-rewrite")
	badUpsert := entryIn(roomA, "bad-upsert")
	skipped := entryIn(roomA, "skipped")
	store := newFakeStore(log, good, badRewrite, badUpsert, skipped)
	store.upsertFail[badUpsert.ID] = errors.New("disk full")

	rewriter := EntryRewriterFunc(func(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error) {
		switch entry.RemoteID() {
		case "bad-rewrite":
			return roomstore.Entry{}, errors.New("malformed entry")
		case "skipped":
			return roomstore.Entry{}, ErrSkipEntry
		}
		return RepointEntry(entry, newRoomID)
	})

	migrated, err := newEntryMigrator(store, rewriter).migrate(context.Background(), roomA, roomB)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !migrated {
		t.Fatal("one successful entry should make the migration succeed")
	}

	if entry, _ := store.get(good.ID); entry.MatrixRoomID() != roomB {
		t.Error("good entry not migrated")
	}
	for _, untouched := range []roomstore.Entry{badRewrite, badUpsert, skipped} {
		if entry, _ := store.get(untouched.ID); entry.MatrixRoomID() != roomA {
			t.Errorf("entry %q changed despite failing or skipping", untouched.ID)
		}
	}
	if upserts := log.matching("upsert " + skipped.ID); len(upserts) != 0 {
		t.Errorf("skipped entry was written: %v", upserts)
	}
}

func TestMigrateEntriesNothingMigrated(t *testing.T) {
	tests := []struct {
		name     string
		entries  []roomstore.Entry
		rewriter EntryRewriter
	}{
		{name: "no entries"},
		{
			name:    "all skipped",
			entries: []roomstore.Entry{entryIn(roomA, "one"), entryIn(roomA, "two")},
			rewriter: EntryRewriterFunc(func(roomstore.Entry, ref.RoomID) (roomstore.Entry, error) {
				return roomstore.Entry{}, ErrSkipEntry
			}),
		},
		{
			name:    "all fail",
			entries: []roomstore.Entry{entryIn(roomA, "one"), entryIn(roomA, "two")},
			rewriter: EntryRewriterFunc(func(roomstore.Entry, ref.RoomID) (roomstore.Entry, error) {
				return roomstore.Entry{}, errors.New("cannot rewrite")
			}),
		},
		{
			name:    "empty rewritten ID",
			entries: []roomstore.Entry{entryIn(roomA, "one")},
			rewriter: EntryRewriterFunc(func(entry roomstore.Entry, _ ref.RoomID) (roomstore.Entry, error) {
				entry.ID = ""
				return entry, nil
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			store := newFakeStore(log, tt.entries...)
			migrated, err := newEntryMigrator(store, tt.rewriter).migrate(context.Background(), roomA, roomB)
			if err != nil {
				t.Fatalf("migrate: %v", err)
			}
			if migrated {
				t.Error("migrate reported success with nothing migrated")
			}
			if store.upserts() != 0 {
				t.Errorf("%d upserts issued", store.upserts())
			}
		})
	}
}

func TestMigrateEntriesRemoveFailureIsolated(t *testing.T) {
	log := &callLog{}
	first, second := entryIn(roomA, "first"), entryIn(roomA, "second")
	store := newFakeStore(log, first, second)
	store.removeFail[first.ID] = errors.New("locked")
	rewriter := EntryRewriterFunc(func(entry roomstore.Entry, newRoomID ref.RoomID) (roomstore.Entry, error) {
		entry.Matrix.RoomID = newRoomID
		entry.ID = roomstore.EntryID(newRoomID, entry.RemoteID())
		return entry, nil
	})

	migrated, err := newEntryMigrator(store, rewriter).migrate(context.Background(), roomA, roomB)
	if err != nil || !migrated {
		t.Fatalf("migrate = %v, %v", migrated, err)
	}
	if upserts := log.matching("upsert " + roomstore.EntryID(roomB, "first")); len(upserts) != 0 {
		t.Error("entry was upserted although removing its old ID failed")
	}
	if _, ok := store.get(roomstore.EntryID(roomB, "second")); !ok {
		t.Error("second entry not migrated")
	}
}

func TestMigrateEntriesListFailure(t *testing.T) {
	store := newFakeStore(&callLog{})
	store.listErr = errors.New("database closed")
	if _, err := newEntryMigrator(store, nil).migrate(context.Background(), roomA, roomB); err == nil {
		t.Fatal("expected list failure to be returned")
	}
}
