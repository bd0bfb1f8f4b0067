// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"maunium.net/go/mautrix/id"
)

// Event types consumed from /sync.
const (
	EventTypeRoomName       = "m.room.name"
	EventTypeRoomMember     = "m.room.member"
	EventTypeCanonicalAlias = "m.room.canonical_alias"
	EventTypeEncryption     = "m.room.encryption"
	EventTypeRoomAvatar     = "m.room.avatar"
	EventTypeTag            = "m.tag"
)

// TagFavourite is the account-data tag that marks a favourite room.
const TagFavourite = "m.favourite"

// Event is a Matrix event as it appears in a /sync response. Content is
// left generic; the accessor methods read the handful of fields this
// client looks at.
type Event struct {
	EventID        id.EventID     `json:"event_id,omitempty"`
	Type           string         `json:"type"`
	Sender         id.UserID      `json:"sender,omitempty"`
	OriginServerTS int64          `json:"origin_server_ts,omitempty"`
	Content        map[string]any `json:"content"`
	StateKey       *string        `json:"state_key,omitempty"`
}

// ContentString returns Content[key] when it is a string, else "".
func (e Event) ContentString(key string) string {
	value, _ := e.Content[key].(string)
	return value
}

// HasStateKey reports whether the event is a state event for stateKey.
func (e Event) HasStateKey(stateKey string) bool {
	return e.StateKey != nil && *e.StateKey == stateKey
}

// HasTag reports whether an m.tag event's content contains tag.
func (e Event) HasTag(tag string) bool {
	tags, ok := e.Content["tags"].(map[string]any)
	if !ok {
		return false
	}
	_, present := tags[tag]
	return present
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data. Only joined rooms are
// consumed; invites and left rooms are never displayed.
type RoomsSection struct {
	Join map[id.RoomID]JoinedRoom `json:"join,omitempty"`

	// JoinOrder lists the keys of Join in the order the server sent
	// them. It is filled when decoding JSON.
	JoinOrder []id.RoomID `json:"-"`
}

// UnmarshalJSON decodes the section and records the order of the join
// map's keys, which a Go map loses.
func (r *RoomsSection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Join json.RawMessage `json:"join"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Join = nil
	r.JoinOrder = nil
	if len(raw.Join) == 0 || bytes.Equal(raw.Join, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw.Join, &r.Join); err != nil {
		return err
	}
	order, err := objectKeys(raw.Join)
	if err != nil {
		return err
	}
	r.JoinOrder = order
	return nil
}

// JoinedRoomIDs returns the joined room IDs in server order when known,
// otherwise sorted.
func (r *RoomsSection) JoinedRoomIDs() []id.RoomID {
	if len(r.JoinOrder) == len(r.Join) {
		return r.JoinOrder
	}
	roomIDs := make([]id.RoomID, 0, len(r.Join))
	for roomID := range r.Join {
		roomIDs = append(roomIDs, roomID)
	}
	slices.Sort(roomIDs)
	return roomIDs
}

// objectKeys returns the keys of a JSON object in document order.
// Duplicate keys are reported once, at their first position.
func objectKeys(data []byte) ([]id.RoomID, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delimiter, ok := token.(json.Delim); !ok || delimiter != '{' {
		return nil, fmt.Errorf("messaging: expected JSON object, got %v", token)
	}

	var keys []id.RoomID
	seen := make(map[string]struct{})
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("messaging: expected object key, got %v", token)
		}
		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return nil, err
		}
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, id.RoomID(key))
	}
	return keys, nil
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Summary             RoomSummary         `json:"summary"`
	State               StateSection        `json:"state"`
	Timeline            TimelineSection     `json:"timeline"`
	AccountData         AccountDataSection  `json:"account_data"`
	UnreadNotifications UnreadNotifications `json:"unread_notifications"`

	// IsDirect is set by servers that annotate direct chats inline.
	IsDirect bool `json:"is_direct,omitempty"`
}

// RoomSummary is the room summary block. Heroes are only sent when the
// set changes, so an empty slice means "no update", not "no heroes".
type RoomSummary struct {
	Heroes             []id.UserID `json:"m.heroes,omitempty"`
	JoinedMemberCount  *int        `json:"m.joined_member_count,omitempty"`
	InvitedMemberCount *int        `json:"m.invited_member_count,omitempty"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch,omitempty"`
	Limited   bool    `json:"limited,omitempty"`
}

// AccountDataSection contains per-room account data events.
type AccountDataSection struct {
	Events []Event `json:"events"`
}

// UnreadNotifications carries the server-computed notification counts.
type UnreadNotifications struct {
	NotificationCount int `json:"notification_count"`
	HighlightCount    int `json:"highlight_count"`
}

// Total is notification_count + highlight_count.
func (u UnreadNotifications) Total() int {
	return u.NotificationCount + u.HighlightCount
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   id.UserID `json:"user_id"`
	DeviceID string    `json:"device_id,omitempty"`
}

// Media is a downloaded media body.
type Media struct {
	Data        []byte
	ContentType string
}
