// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Room
// upgrade tests use them to wait on completion callbacks and on fake
// homeserver requests issued from background goroutines.
//
// [UniqueID] generates monotonically increasing identifiers so tests
// can build distinct room and event IDs without reading the clock.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
