// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credential material outside the Go heap.
//
// The bridge's appservice token authorizes it to act as the bot and as
// every ghost in its namespace, so it is the most sensitive value the
// process holds. [Buffer] allocates memory via mmap(MAP_ANONYMOUS),
// locks it into RAM (mlock), and excludes it from core dumps
// (MADV_DONTDUMP). Close zeroes, unlocks, and unmaps it.
//
// [ReadFromPath] loads a token file (or stdin for "-") straight into a
// Buffer and zeroes the intermediate heap copy.
//
// Depends on golang.org/x/sys/unix.
package secret
