// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"regexp"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/messaging"
	"github.com/bureau-foundation/roomupgrade/upgrade"
)

// Identities implements upgrade.Identities on top of an appservice
// session. Ghosts are the users whose ID matches the configured
// pattern; the bot itself never counts as a ghost.
type Identities struct {
	bot          messaging.Session
	masquerade   func(ref.UserID) messaging.Session
	ghostPattern *regexp.Regexp
}

var _ upgrade.Identities = (*Identities)(nil)

// NewIdentities wraps session, which must be authenticated with the
// appservice token so that masquerading is allowed. A nil ghostPattern
// means the bridge controls no ghosts.
func NewIdentities(session *messaging.DirectSession, ghostPattern *regexp.Regexp) (*Identities, error) {
	if session == nil {
		return nil, fmt.Errorf("bridge: identities need a session")
	}
	return &Identities{
		bot: session,
		masquerade: func(userID ref.UserID) messaging.Session {
			return session.As(userID)
		},
		ghostPattern: ghostPattern,
	}, nil
}

// Bot returns the bot's intent.
func (i *Identities) Bot() upgrade.Intent {
	return sessionIntent{session: i.bot}
}

// Ghost returns an intent acting as userID.
func (i *Identities) Ghost(userID ref.UserID) upgrade.Intent {
	return sessionIntent{session: i.masquerade(userID)}
}

// JoinedMembers lists roomID's joined members as seen by the bot.
func (i *Identities) JoinedMembers(ctx context.Context, roomID ref.RoomID) (map[ref.UserID]messaging.JoinedMember, error) {
	return i.bot.JoinedMembers(ctx, roomID)
}

// IsGhost reports whether userID falls in the ghost namespace.
func (i *Identities) IsGhost(userID ref.UserID) bool {
	if i.ghostPattern == nil || userID.IsZero() || userID == i.bot.UserID() {
		return false
	}
	return i.ghostPattern.MatchString(userID.String())
}

// sessionIntent adapts a messaging.Session to upgrade.Intent.
type sessionIntent struct {
	session messaging.Session
}

func (s sessionIntent) JoinRoom(ctx context.Context, roomID ref.RoomID, via []ref.ServerName) error {
	_, err := s.session.JoinRoom(ctx, roomID, via...)
	return err
}

func (s sessionIntent) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	return s.session.LeaveRoom(ctx, roomID)
}
