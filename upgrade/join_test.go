// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/roomupgrade/lib/ref"
	"github.com/bureau-foundation/roomupgrade/messaging"
)

func TestAttemptJoin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		joinErr    error
		wantResult joinResult
		wantErr    bool
	}{
		{name: "joined", wantResult: joinJoined},
		{name: "forbidden is denied", joinErr: forbidden, wantResult: joinDenied},
		{name: "wrapped forbidden is denied", joinErr: fmt.Errorf("messaging: join room failed: %w", forbidden), wantResult: joinDenied},
		{name: "other matrix error", joinErr: &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}, wantErr: true},
		{name: "transport error", joinErr: errors.New("connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			identities := newFakeIdentities(log)
			if tt.joinErr != nil {
				identities.failJoin(botUserID, roomB, tt.joinErr)
			}

			result, err := attemptJoin(ctx, identities.Bot(), roomB, []ref.ServerName{ref.MustParseServerName("example.org")})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, tt.joinErr) {
					t.Errorf("error %v does not wrap %v", err, tt.joinErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("attemptJoin: %v", err)
			}
			if result != tt.wantResult {
				t.Errorf("result = %v, want %v", result, tt.wantResult)
			}
			if calls := log.snapshot(); len(calls) != 1 || calls[0] != "join @bridge:bridge.example !B:example.org via=example.org" {
				t.Errorf("calls = %v", calls)
			}
		})
	}
}

func TestJoinHint(t *testing.T) {
	if hint := joinHint(ref.UserID{}); hint != nil {
		t.Errorf("zero sender hint = %v, want nil", hint)
	}
	hint := joinHint(ref.MustParseUserID("@admin:example.org"))
	if len(hint) != 1 || hint[0].String() != "example.org" {
		t.Errorf("hint = %v, want [example.org]", hint)
	}
}
