// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/messaging"
)

type joinResult int

const (
	joinJoined joinResult = iota
	joinDenied
)

// attemptJoin joins roomID as intent. M_FORBIDDEN is the one expected
// refusal and yields joinDenied with a nil error; every other failure
// is returned.
func attemptJoin(ctx context.Context, intent Intent, roomID ref.RoomID, via []ref.ServerName) (joinResult, error) {
	err := intent.JoinRoom(ctx, roomID, via)
	if err == nil {
		return joinJoined, nil
	}
	if messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
		return joinDenied, nil
	}
	return 0, err
}

// joinHint returns the server of userID as a one-element via list, or
// nil for the zero UserID.
func joinHint(userID ref.UserID) []ref.ServerName {
	if userID.IsZero() {
		return nil
	}
	return []ref.ServerName{userID.Server()}
}
