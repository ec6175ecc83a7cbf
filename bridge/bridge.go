// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/roomupgrade/lib/clock"
	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/messaging"
	"github.com/bureau-foundation/roomupgrade/upgrade"
)

// Handler receives upgrade events. *upgrade.Handler implements it.
type Handler interface {
	OnTombstone(ctx context.Context, event upgrade.TombstoneEvent) bool
	OnInvite(ctx context.Context, event upgrade.InviteEvent) bool
}

var _ Handler = (*upgrade.Handler)(nil)

// Config configures a Bridge.
type Config struct {
	// Session is the bot's session. Required.
	Session messaging.Session

	// Handler receives tombstones and invites. Required.
	Handler Handler

	// Clock times the retry backoff. Default: clock.Real().
	Clock clock.Clock

	// Timeout is the /sync long-poll timeout in milliseconds.
	// Default: 30000.
	Timeout int

	// MaxBackoff caps the delay between /sync retries. The backoff
	// starts at one second and doubles per consecutive failure.
	// Default: 30 seconds.
	MaxBackoff time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Bridge drives a Handler from the bot's /sync stream.
type Bridge struct {
	session    messaging.Session
	handler    Handler
	clock      clock.Clock
	timeout    int
	maxBackoff time.Duration
	logger     *slog.Logger

	// dispatches tracks handler calls still running.
	dispatches sync.WaitGroup
}

// New validates config and returns a Bridge.
func New(config Config) (*Bridge, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("bridge: Session is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("bridge: Handler is required")
	}
	bridge := &Bridge{
		session:    config.Session,
		handler:    config.Handler,
		clock:      config.Clock,
		timeout:    config.Timeout,
		maxBackoff: config.MaxBackoff,
		logger:     config.Logger,
	}
	if bridge.clock == nil {
		bridge.clock = clock.Real()
	}
	if bridge.timeout == 0 {
		bridge.timeout = 30000
	}
	if bridge.maxBackoff == 0 {
		bridge.maxBackoff = 30 * time.Second
	}
	if bridge.logger == nil {
		bridge.logger = slog.Default()
	}
	return bridge, nil
}

// Run performs the initial sync, dispatches it, and then follows the
// incremental stream until ctx is cancelled. It returns an error only
// when the initial sync fails. Handler calls still in flight are
// drained before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.dispatches.Wait()

	response, err := b.session.Sync(ctx, messaging.SyncOptions{Filter: syncFilter})
	if err != nil {
		return fmt.Errorf("bridge: initial sync: %w", err)
	}
	b.logger.Info("initial sync complete",
		"next_batch", response.NextBatch,
		"joined_rooms", len(response.Rooms.Join),
		"pending_invites", len(response.Rooms.Invite),
	)
	b.HandleSync(ctx, response)

	b.syncLoop(ctx, response.NextBatch)
	return nil
}

// Wait blocks until every dispatched handler call has returned.
func (b *Bridge) Wait() {
	b.dispatches.Wait()
}

// syncLoop long-polls /sync from sinceToken until ctx is cancelled,
// retrying transient failures with exponential backoff.
func (b *Bridge) syncLoop(ctx context.Context, sinceToken string) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		response, err := b.session.Sync(ctx, messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    b.timeout,
			SetTimeout: true,
			Filter:     syncFilter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			// A dead keep-alive connection would fail the retry too.
			b.session.CloseIdleConnections()
			select {
			case <-ctx.Done():
				return
			case <-b.clock.After(backoff):
			}
			backoff *= 2
			if backoff > b.maxBackoff {
				backoff = b.maxBackoff
			}
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch
		b.HandleSync(ctx, response)
	}
}

// HandleSync dispatches the upgrade events in one /sync batch. It
// returns once the batch's tombstones have been handled; invites keep
// running in the background (see Wait).
func (b *Bridge) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	if response == nil {
		return
	}

	var tombstones sync.WaitGroup
	for roomID, room := range response.Rooms.Join {
		for _, event := range roomTombstones(room) {
			tombstone, err := upgrade.TombstoneFromEvent(roomID, event)
			if err != nil {
				b.logger.Warn("ignoring malformed tombstone",
					"room_id", roomID,
					"event_id", event.EventID,
					"error", err,
				)
				continue
			}
			tombstones.Add(1)
			b.dispatch(func() {
				defer tombstones.Done()
				if !b.handler.OnTombstone(ctx, tombstone) {
					b.logger.Debug("tombstone not handled",
						"room_id", roomID,
						"event_id", event.EventID,
					)
				}
			})
		}
	}
	tombstones.Wait()

	for roomID, room := range response.Rooms.Invite {
		invite := upgrade.InviteEvent{
			RoomID: roomID,
			Sender: inviter(room, b.session.UserID()),
		}
		b.dispatch(func() {
			if !b.handler.OnInvite(ctx, invite) {
				b.logger.Debug("invite not related to a room upgrade",
					"room_id", roomID,
					"sender", invite.Sender,
				)
			}
		})
	}
}

func (b *Bridge) dispatch(fn func()) {
	b.dispatches.Add(1)
	go func() {
		defer b.dispatches.Done()
		fn()
	}()
}

// roomTombstones returns the tombstone state events of a joined room,
// state section first, without repeating an event ID.
func roomTombstones(room messaging.JoinedRoom) []messaging.Event {
	var found []messaging.Event
	seen := make(map[ref.EventID]bool)
	collect := func(events []messaging.Event) {
		for _, event := range events {
			if event.Type != ref.EventTypeTombstone || !event.IsState() {
				continue
			}
			if !event.EventID.IsZero() {
				if seen[event.EventID] {
					continue
				}
				seen[event.EventID] = true
			}
			found = append(found, event)
		}
	}
	collect(room.State.Events)
	collect(room.Timeline.Events)
	return found
}

// inviter returns the sender of botUserID's invite membership in the
// room's invite state, or the zero UserID if it is not present.
func inviter(room messaging.InvitedRoom, botUserID ref.UserID) ref.UserID {
	for _, event := range room.InviteState.Events {
		if event.Type != ref.EventTypeMember || event.StateKey == nil {
			continue
		}
		if *event.StateKey != botUserID.String() {
			continue
		}
		if event.ContentString("membership") == "invite" {
			return event.Sender
		}
	}
	return ref.UserID{}
}
