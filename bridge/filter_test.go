// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestSyncFilter(t *testing.T) {
	var filter struct {
		Room struct {
			State    struct{ Types []string } `json:"state"`
			Timeline struct{ Types []string } `json:"timeline"`
		} `json:"room"`
		Presence struct{ Types []string } `json:"presence"`
	}
	if err := json.Unmarshal([]byte(syncFilter), &filter); err != nil {
		t.Fatalf("sync filter is not valid JSON: %v", err)
	}

	for _, section := range [][]string{filter.Room.State.Types, filter.Room.Timeline.Types} {
		for _, eventType := range []string{"m.room.tombstone", "m.room.member"} {
			if !slices.Contains(section, eventType) {
				t.Errorf("filter section %v is missing %s", section, eventType)
			}
		}
	}
	if filter.Presence.Types == nil || len(filter.Presence.Types) != 0 {
		t.Errorf("presence should be filtered out, got %v", filter.Presence.Types)
	}
}
