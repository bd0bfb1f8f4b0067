// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package roomstate

import (
	"strings"

	"maunium.net/go/mautrix/id"
)

// UnnamedRoom is the name of a room with no name event and no heroes.
const UnnamedRoom = "Unnamed Room"

// Room is one joined room as the status view sees it.
type Room struct {
	ID   id.RoomID `cbor:"1,keyasint"`
	Name string    `cbor:"2,keyasint"`

	// DMPartnerID is set for an unnamed room with exactly one hero.
	DMPartnerID    id.UserID    `cbor:"3,keyasint,omitempty"`
	CanonicalAlias id.RoomAlias `cbor:"4,keyasint,omitempty"`

	// Unread is notification_count + highlight_count from the latest
	// delta that mentioned the room.
	Unread int `cbor:"5,keyasint"`

	// Timestamp is origin_server_ts (ms) of the newest timeline event
	// seen. It never decreases.
	Timestamp int64 `cbor:"6,keyasint"`

	Encrypted bool `cbor:"7,keyasint"`
	IsDirect  bool `cbor:"8,keyasint"`

	// AvatarURL is a thumbnail URL, or empty.
	AvatarURL string `cbor:"9,keyasint,omitempty"`

	IsFavorite bool `cbor:"10,keyasint"`
}

// Visible reports whether the room belongs in the visible list given
// the currently open panel.
func (r Room) Visible(openPanelRoomID id.RoomID) bool {
	return r.Unread > 0 || r.IsFavorite || (openPanelRoomID != "" && r.ID == openPanelRoomID)
}

// ListsEqual reports whether two visible lists render identically:
// same length and, index by index, the same ID, unread count, name,
// encryption flag, and avatar URL.
func ListsEqual(previous, next []Room) bool {
	if len(previous) != len(next) {
		return false
	}
	for i := range next {
		a, b := previous[i], next[i]
		if a.ID != b.ID || a.Unread != b.Unread || a.Name != b.Name ||
			a.Encrypted != b.Encrypted || a.AvatarURL != b.AvatarURL {
			return false
		}
	}
	return true
}

// AnyUnread reports whether any room in rooms has unread messages.
func AnyUnread(rooms []Room) bool {
	for _, room := range rooms {
		if room.Unread > 0 {
			return true
		}
	}
	return false
}

// localpart returns "bob" for "@bob:example.org". Malformed IDs are
// trimmed the same way as far as possible.
func localpart(userID id.UserID) string {
	if local, _, err := userID.Parse(); err == nil && local != "" {
		return local
	}
	head, _, _ := strings.Cut(string(userID), ":")
	return strings.TrimPrefix(head, "@")
}
