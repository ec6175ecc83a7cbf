// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// The bridge's sync loop waits between failed /sync attempts with an
// exponential backoff. Taking a Clock instead of calling time.After
// directly lets tests drive the backoff without sleeping:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the loop with c ...
//	c.WaitForTimers(1)         // wait for the loop to start waiting
//	c.Advance(1 * time.Second) // release it deterministically
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
