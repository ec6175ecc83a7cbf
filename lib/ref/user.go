// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID is a validated Matrix user ID (e.g., "@bridge:example.org").
//
// The bridge deals with three kinds of user: its own bot account, the
// ghosts it puppets on behalf of remote-network users, and everyone
// else. All three share this type; which kind a given ID is depends on
// the appservice registration, not on the ID's structure.
//
// UserID is an immutable value type usable as a map key. The zero value
// is not valid; use IsZero to check.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := parseMatrixID(raw); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error.
func MustParseUserID(raw string) UserID {
	userID, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return userID
}

// String returns the full user ID string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the part between '@' and the first ':'. Panics on
// the zero value.
func (u UserID) Localpart() string {
	localpart, _ := u.split()
	return localpart
}

// Server returns the homeserver that owns this user. A room upgrade
// initiated by this user is reachable through this server, which makes
// it the natural join hint for the replacement room. Panics on the zero
// value.
func (u UserID) Server() ServerName {
	_, server := u.split()
	return newServerName(server)
}

func (u UserID) split() (localpart, server string) {
	if u.id == "" {
		panic("ref: UserID accessor called on zero value")
	}
	localpart, server, err := parseMatrixID(u.id)
	if err != nil {
		// Validated at construction.
		panic(fmt.Sprintf("ref: UserID %q: %v", u.id, err))
	}
	return localpart, server
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
