// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// bridge's room store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with fixed pragmas:
//
//   - journal_mode=WAL: reads never block the single writer.
//   - synchronous=NORMAL: transactions survive process crashes without
//     an fsync per commit.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock
//     instead of failing with SQLITE_BUSY.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY.
//
// Callers write SQL directly with sqlitex.Execute. [Pool.WithConn]
// scopes a borrowed connection to a function; [Pool.WithTx] does the
// same inside an IMMEDIATE transaction:
//
//	err := pool.WithTx(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM room_entries WHERE id = ?",
//	        &sqlitex.ExecOptions{Args: []any{id}})
//	})
package sqlitepool
