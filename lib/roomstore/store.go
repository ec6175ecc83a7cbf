// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/roomupgrade/lib/codec"
	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_entries (
	id             TEXT PRIMARY KEY,
	matrix_room_id TEXT,
	remote_id      TEXT,
	payload        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS room_entries_matrix ON room_entries (matrix_room_id);
CREATE INDEX IF NOT EXISTS room_entries_remote ON room_entries (remote_id);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the number of SQLite connections. Zero uses the
	// sqlitepool default.
	PoolSize int

	// Logger receives store and pool messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Store is a SQLite-backed room mapping store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("roomstore: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Upsert inserts entry, or replaces the stored entry with the same ID.
func (s *Store) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("roomstore: upsert: entry ID is required")
	}
	payload, err := codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("roomstore: encoding entry %q: %w", entry.ID, err)
	}

	var matrixRoomID, remoteID any
	if roomID := entry.MatrixRoomID(); !roomID.IsZero() {
		matrixRoomID = roomID.String()
	}
	if entry.Remote != nil {
		remoteID = entry.Remote.ID
	}

	err = s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO room_entries (id, matrix_room_id, remote_id, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				matrix_room_id = excluded.matrix_room_id,
				remote_id = excluded.remote_id,
				payload = excluded.payload`,
			&sqlitex.ExecOptions{Args: []any{entry.ID, matrixRoomID, remoteID, payload}})
	})
	if err != nil {
		return fmt.Errorf("roomstore: upsert %q: %w", entry.ID, err)
	}
	s.logger.Debug("room entry stored",
		"entry_id", entry.ID,
		"room_id", entry.MatrixRoomID(),
	)
	return nil
}

// RemoveByID deletes the entry with the given ID. Removing an ID that
// is not stored is not an error.
func (s *Store) RemoveByID(ctx context.Context, id string) error {
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM room_entries WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{id}})
	})
	if err != nil {
		return fmt.Errorf("roomstore: remove %q: %w", id, err)
	}
	s.logger.Debug("room entry removed", "entry_id", id)
	return nil
}

// Get returns the entry with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	entries, err := s.query(ctx, "SELECT payload FROM room_entries WHERE id = ?", id)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("roomstore: get %q: %w", id, ErrNotFound)
	}
	return entries[0], nil
}

// EntriesByRoomID returns every entry whose Matrix side is roomID,
// ordered by ID.
func (s *Store) EntriesByRoomID(ctx context.Context, roomID ref.RoomID) ([]Entry, error) {
	return s.query(ctx,
		"SELECT payload FROM room_entries WHERE matrix_room_id = ? ORDER BY id",
		roomID.String())
}

// EntriesByRemoteID returns every entry whose remote side is remoteID,
// ordered by ID.
func (s *Store) EntriesByRemoteID(ctx context.Context, remoteID string) ([]Entry, error) {
	return s.query(ctx,
		"SELECT payload FROM room_entries WHERE remote_id = ? ORDER BY id",
		remoteID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	var entries []Entry
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, payload)
				var entry Entry
				if err := codec.Unmarshal(payload, &entry); err != nil {
					diagnostic, _ := codec.Diagnose(payload)
					return fmt.Errorf("decoding payload %s: %w", diagnostic, err)
				}
				entries = append(entries, entry)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("roomstore: query: %w", err)
	}
	return entries, nil
}
