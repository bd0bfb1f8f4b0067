// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestMinimalFilter(t *testing.T) {
	var filter struct {
		Room struct {
			State struct {
				Types           []string `json:"types"`
				LazyLoadMembers bool     `json:"lazy_load_members"`
			} `json:"state"`
			Timeline struct {
				Limit int `json:"limit"`
			} `json:"timeline"`
			AccountData struct {
				Types []string `json:"types"`
			} `json:"account_data"`
		} `json:"room"`
		Presence struct {
			Types []string `json:"types"`
		} `json:"presence"`
		AccountData struct {
			Types []string `json:"types"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal([]byte(MinimalFilter()), &filter); err != nil {
		t.Fatalf("filter is not valid JSON: %v", err)
	}

	expectedState := []string{
		"m.room.name", "m.room.member", "m.room.canonical_alias",
		"m.room.encryption", "m.room.avatar",
	}
	if !slices.Equal(filter.Room.State.Types, expectedState) {
		t.Errorf("state types = %v, want %v", filter.Room.State.Types, expectedState)
	}
	if !filter.Room.State.LazyLoadMembers {
		t.Error("expected lazy_load_members=true")
	}
	if filter.Room.Timeline.Limit != 1 {
		t.Errorf("timeline limit = %d, want 1", filter.Room.Timeline.Limit)
	}
	if !slices.Equal(filter.Room.AccountData.Types, []string{"m.tag"}) {
		t.Errorf("room account data types = %v", filter.Room.AccountData.Types)
	}
	if filter.Presence.Types == nil || len(filter.Presence.Types) != 0 {
		t.Errorf("presence should be suppressed with an empty types list, got %v", filter.Presence.Types)
	}
	if filter.AccountData.Types == nil || len(filter.AccountData.Types) != 0 {
		t.Errorf("global account data should be suppressed, got %v", filter.AccountData.Types)
	}
}

func TestEventHelpers(t *testing.T) {
	stateKey := "@bob:example.org"
	event := Event{
		Type:     EventTypeRoomMember,
		StateKey: &stateKey,
		Content: map[string]any{
			"displayname": "Bob",
			"avatar_url":  42.0,
		},
	}
	if event.ContentString("displayname") != "Bob" {
		t.Error("expected displayname")
	}
	if event.ContentString("avatar_url") != "" {
		t.Error("non-string content should read as empty")
	}
	if event.ContentString("missing") != "" {
		t.Error("missing key should read as empty")
	}
	if !event.HasStateKey("@bob:example.org") || event.HasStateKey("@alice:example.org") {
		t.Error("HasStateKey mismatch")
	}
	if (Event{}).HasStateKey("") {
		t.Error("event without state_key is not a state event")
	}

	tag := Event{Type: EventTypeTag, Content: map[string]any{"tags": map[string]any{"m.favourite": map[string]any{}}}}
	if !tag.HasTag(TagFavourite) {
		t.Error("expected favourite tag")
	}
	if tag.HasTag("m.lowpriority") {
		t.Error("unexpected low priority tag")
	}
	if (Event{Type: EventTypeTag, Content: map[string]any{}}).HasTag(TagFavourite) {
		t.Error("empty tag content should not be favourite")
	}
}
