// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
)

// ghostRelocator moves the bridge's ghosts from an old room to its
// replacement.
type ghostRelocator struct {
	identities Identities
	logger     *slog.Logger

	// background tracks the bot's final leave, which relocate does not
	// wait for.
	background *sync.WaitGroup
}

// relocate moves each ghost joined to oldRoomID into newRoomID, one at
// a time, leaving before joining. The first failure stops the loop;
// ghosts moved before it stay moved. Once every ghost has moved the bot
// leaves oldRoomID in the background.
func (g *ghostRelocator) relocate(ctx context.Context, oldRoomID, newRoomID ref.RoomID) error {
	members, err := g.identities.JoinedMembers(ctx, oldRoomID)
	if err != nil {
		return fmt.Errorf("upgrade: listing members of %s: %w", oldRoomID, err)
	}

	var ghosts []ref.UserID
	for userID := range members {
		if g.identities.IsGhost(userID) {
			ghosts = append(ghosts, userID)
		}
	}
	// Stable order keeps logs comparable between runs.
	slices.SortFunc(ghosts, func(a, b ref.UserID) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, userID := range ghosts {
		intent := g.identities.Ghost(userID)
		if err := intent.LeaveRoom(ctx, oldRoomID); err != nil {
			return fmt.Errorf("upgrade: ghost %s leaving %s: %w", userID, oldRoomID, err)
		}
		if err := intent.JoinRoom(ctx, newRoomID, nil); err != nil {
			return fmt.Errorf("upgrade: ghost %s joining %s: %w", userID, newRoomID, err)
		}
		g.logger.Debug("ghost relocated",
			"user_id", userID,
			"old_room_id", oldRoomID,
			"new_room_id", newRoomID,
		)
	}

	g.logger.Info("ghosts relocated",
		"old_room_id", oldRoomID,
		"new_room_id", newRoomID,
		"ghosts", len(ghosts),
	)

	bot := g.identities.Bot()
	leaveContext := context.WithoutCancel(ctx)
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		if err := bot.LeaveRoom(leaveContext, oldRoomID); err != nil {
			g.logger.Warn("bot failed to leave old room",
				"old_room_id", oldRoomID,
				"error", err,
			)
			return
		}
		g.logger.Info("bot left old room", "old_room_id", oldRoomID)
	}()
	return nil
}
