// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reads for the Matrix
// client. Every JSON response body is read through [ReadResponse] so a
// misbehaving homeserver cannot make the bridge allocate without limit.
package netutil

import (
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON API response reads at 64 MB. A full
// /sync for a bot joined to thousands of rooms is the largest response
// the bridge sees, and it stays well under this.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize.
func ReadResponse(body io.Reader) ([]byte, error) {
	return ReadResponseLimit(body, MaxResponseSize)
}

// ReadResponseLimit reads body up to limit bytes. A body longer than
// limit is an error rather than a silent truncation: a truncated JSON
// document fails to parse with a misleading message.
func ReadResponseLimit(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}
