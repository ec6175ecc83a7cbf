// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/lib/roomstore"
	"github.com/bureau-foundation/roomupgrade/messaging"
)

var (
	botUserID = ref.MustParseUserID("@bridge:bridge.example")
	ghost1    = ref.MustParseUserID("@ghost1:bridge.example")
	ghost2    = ref.MustParseUserID("@ghost2:bridge.example")
	human     = ref.MustParseUserID("@alice:example.org")
	roomA     = ref.MustParseRoomID("!A:example.org")
	roomB     = ref.MustParseRoomID("!B:example.org")
)

var forbidden = &messaging.MatrixError{
	Code:       messaging.ErrCodeForbidden,
	Message:    "You are not invited to this room.",
	StatusCode: 403,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// callLog records the ordered side effects of a test run.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// matching returns the recorded calls that start with prefix.
func (l *callLog) matching(prefix string) []string {
	var matched []string
	for _, call := range l.snapshot() {
		if strings.HasPrefix(call, prefix) {
			matched = append(matched, call)
		}
	}
	return matched
}

// indexOf returns the position of the first call equal to want, or -1.
func (l *callLog) indexOf(want string) int {
	for index, call := range l.snapshot() {
		if call == want {
			return index
		}
	}
	return -1
}

type intentKey struct {
	userID ref.UserID
	roomID ref.RoomID
}

// fakeIdentities serves intents that record into a callLog. Join and
// leave results are scripted per (user, room); a scripted join error
// list is consumed one error per call.
type fakeIdentities struct {
	log *callLog

	mu          sync.Mutex
	members     map[ref.RoomID]map[ref.UserID]messaging.JoinedMember
	membersErr  error
	joinErrors  map[intentKey][]error
	leaveErrors map[intentKey]error
	ghosts      map[ref.UserID]bool
}

func newFakeIdentities(log *callLog) *fakeIdentities {
	return &fakeIdentities{
		log:         log,
		members:     make(map[ref.RoomID]map[ref.UserID]messaging.JoinedMember),
		joinErrors:  make(map[intentKey][]error),
		leaveErrors: make(map[intentKey]error),
		ghosts:      make(map[ref.UserID]bool),
	}
}

func (f *fakeIdentities) setMembers(roomID ref.RoomID, userIDs ...ref.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make(map[ref.UserID]messaging.JoinedMember)
	for _, userID := range userIDs {
		members[userID] = messaging.JoinedMember{DisplayName: userID.Localpart()}
	}
	f.members[roomID] = members
}

func (f *fakeIdentities) markGhosts(userIDs ...ref.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, userID := range userIDs {
		f.ghosts[userID] = true
	}
}

func (f *fakeIdentities) failJoin(userID ref.UserID, roomID ref.RoomID, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := intentKey{userID, roomID}
	f.joinErrors[key] = append(f.joinErrors[key], errs...)
}

func (f *fakeIdentities) failLeave(userID ref.UserID, roomID ref.RoomID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaveErrors[intentKey{userID, roomID}] = err
}

func (f *fakeIdentities) Bot() Intent { return &fakeIntent{owner: f, userID: botUserID} }

func (f *fakeIdentities) Ghost(userID ref.UserID) Intent {
	return &fakeIntent{owner: f, userID: userID}
}

func (f *fakeIdentities) JoinedMembers(ctx context.Context, roomID ref.RoomID) (map[ref.UserID]messaging.JoinedMember, error) {
	f.log.add("members %s", roomID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	members := make(map[ref.UserID]messaging.JoinedMember, len(f.members[roomID]))
	for userID, member := range f.members[roomID] {
		members[userID] = member
	}
	return members, nil
}

func (f *fakeIdentities) IsGhost(userID ref.UserID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ghosts[userID]
}

type fakeIntent struct {
	owner  *fakeIdentities
	userID ref.UserID
}

func (i *fakeIntent) JoinRoom(ctx context.Context, roomID ref.RoomID, via []ref.ServerName) error {
	servers := make([]string, len(via))
	for index, server := range via {
		servers[index] = server.String()
	}
	i.owner.log.add("join %s %s via=%s", i.userID, roomID, strings.Join(servers, ","))

	i.owner.mu.Lock()
	defer i.owner.mu.Unlock()
	key := intentKey{i.userID, roomID}
	if queued := i.owner.joinErrors[key]; len(queued) > 0 {
		i.owner.joinErrors[key] = queued[1:]
		return queued[0]
	}
	return nil
}

func (i *fakeIntent) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	i.owner.log.add("leave %s %s", i.userID, roomID)
	i.owner.mu.Lock()
	defer i.owner.mu.Unlock()
	return i.owner.leaveErrors[intentKey{i.userID, roomID}]
}

// fakeStore is an in-memory EntryStore with scripted failures.
type fakeStore struct {
	log *callLog

	mu          sync.Mutex
	entries     map[string]roomstore.Entry
	listErr     error
	upsertFail  map[string]error
	removeFail  map[string]error
	upsertCount int
}

func newFakeStore(log *callLog, entries ...roomstore.Entry) *fakeStore {
	store := &fakeStore{
		log:        log,
		entries:    make(map[string]roomstore.Entry),
		upsertFail: make(map[string]error),
		removeFail: make(map[string]error),
	}
	for _, entry := range entries {
		store.entries[entry.ID] = entry
	}
	return store
}

func (s *fakeStore) EntriesByRoomID(ctx context.Context, roomID ref.RoomID) ([]roomstore.Entry, error) {
	s.log.add("list %s", roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var result []roomstore.Entry
	for _, entry := range s.entries {
		if entry.MatrixRoomID() == roomID {
			result = append(result, entry.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *fakeStore) Upsert(ctx context.Context, entry roomstore.Entry) error {
	s.log.add("upsert %s", entry.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertFail[entry.ID]; err != nil {
		return err
	}
	s.upsertCount++
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *fakeStore) RemoveByID(ctx context.Context, id string) error {
	s.log.add("remove %s", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeFail[id]; err != nil {
		return err
	}
	delete(s.entries, id)
	return nil
}

func (s *fakeStore) get(id string) (roomstore.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	return entry, ok
}

func (s *fakeStore) upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCount
}

func entryIn(roomID ref.RoomID, remoteID string) roomstore.Entry {
	return roomstore.Entry{
		ID: roomstore.EntryID(roomID, remoteID),
		Matrix: &roomstore.MatrixRoom{
			RoomID: roomID,
			Name:   "general",
			Topic:  "remote " + remoteID,
			Extras: map[string]any{"bridged": true},
		},
		Remote: &roomstore.RemoteRoom{ID: remoteID},
	}
}
