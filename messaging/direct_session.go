// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/lib/secret"
)

// DirectSession is an authenticated Matrix session.
// It wraps a Client with an access token for making authenticated API calls.
//
// The access token is stored in a secret.Buffer (mmap-backed, locked against
// swap, excluded from core dumps). The caller must call Close on the session
// that owns the token when it is no longer needed.
type DirectSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID

	// masquerade is set on sessions derived with As. Every request
	// carries it as the user_id query parameter.
	masquerade bool

	ownsToken bool
}

// UserID returns the fully-qualified Matrix user ID this session acts as.
func (s *DirectSession) UserID() ref.UserID {
	return s.userID
}

// As returns a session that acts as userID using this session's
// appservice token. The homeserver accepts the assertion only for users
// inside the appservice's registered namespaces. The returned session
// shares the token and does not release it on Close.
func (s *DirectSession) As(userID ref.UserID) *DirectSession {
	return &DirectSession{
		client:      s.client,
		accessToken: s.accessToken,
		userID:      userID,
		masquerade:  true,
	}
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool.
func (s *DirectSession) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// Close releases the access token memory (zeros, unlocks, unmaps) when
// this session owns it. Sessions returned by As do nothing.
// Idempotent.
func (s *DirectSession) Close() error {
	if s.ownsToken && s.accessToken != nil {
		return s.accessToken.Close()
	}
	return nil
}

// values returns the query parameters every request from this session
// carries, merged into a fresh url.Values.
func (s *DirectSession) values() url.Values {
	query := url.Values{}
	if s.masquerade {
		query.Set("user_id", s.userID.String())
	}
	return query
}

// WhoAmI validates the access token and returns the user ID the
// homeserver associates with this session.
func (s *DirectSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil, s.values())
	if err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// JoinRoom joins a room by ID. Servers in via are passed to the
// homeserver as routing hints (server_name and via query parameters)
// for rooms it does not yet participate in. Returns the joined room ID.
func (s *DirectSession) JoinRoom(ctx context.Context, roomID ref.RoomID, via ...ref.ServerName) (ref.RoomID, error) {
	query := s.values()
	for _, server := range via {
		if server.IsZero() {
			continue
		}
		query.Add("server_name", server.String())
		query.Add("via", server.String())
	}

	path := "/_matrix/client/v3/join/" + url.PathEscape(roomID.String())
	body, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}, query)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: join room %s failed: %w", roomID, err)
	}

	var response struct {
		RoomID ref.RoomID `json:"room_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to parse join response: %w", err)
	}
	if response.RoomID.IsZero() {
		return roomID, nil
	}
	return response.RoomID, nil
}

// LeaveRoom leaves a room by ID.
func (s *DirectSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/leave", url.PathEscape(roomID.String()))
	_, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}, s.values())
	if err != nil {
		return fmt.Errorf("messaging: leave room %s failed: %w", roomID, err)
	}
	return nil
}

// JoinedMembers returns the users currently joined to a room, keyed by
// user ID. The caller must be joined to the room.
func (s *DirectSession) JoinedMembers(ctx context.Context, roomID ref.RoomID) (map[ref.UserID]JoinedMember, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/joined_members", url.PathEscape(roomID.String()))
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, s.values())
	if err != nil {
		return nil, fmt.Errorf("messaging: joined members for %s failed: %w", roomID, err)
	}

	var response JoinedMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse joined members response: %w", err)
	}
	if response.Joined == nil {
		response.Joined = map[ref.UserID]JoinedMember{}
	}
	return response.Joined, nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := s.values()
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}
