// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package roomstate

import (
	"cmp"
	"slices"
	"strings"

	"maunium.net/go/mautrix/id"

	"github.com/nurefexc/matrix-status/messaging"
)

// ThumbnailFunc converts an mxc:// content URI into a thumbnail URL,
// returning "" for anything it cannot convert.
type ThumbnailFunc func(contentURI string) string

// Record is a stored room plus the bookkeeping needed to merge future
// deltas onto it. Records round-trip through the state snapshot.
type Record struct {
	Room Room `cbor:"1,keyasint"`

	// Sequence orders rooms by first sighting; ties in the visible
	// list sort by it.
	Sequence uint64 `cbor:"2,keyasint"`

	// ExplicitName is set once an m.room.name event named the room;
	// hero-derived names no longer apply.
	ExplicitName bool `cbor:"3,keyasint"`

	// ExplicitAvatar is set once an m.room.avatar event supplied the
	// avatar; the direct-chat member fallback no longer applies.
	ExplicitAvatar bool `cbor:"4,keyasint"`
}

// Store is the canonical room map.
type Store struct {
	thumbnail    ThumbnailFunc
	rooms        map[id.RoomID]*Record
	nextSequence uint64
}

// NewStore returns an empty store. thumbnail may be nil, in which case
// avatars are never set.
func NewStore(thumbnail ThumbnailFunc) *Store {
	if thumbnail == nil {
		thumbnail = func(string) string { return "" }
	}
	return &Store{
		thumbnail: thumbnail,
		rooms:     make(map[id.RoomID]*Record),
	}
}

// SetThumbnail replaces the content URI converter, for example after
// the homeserver changed. Stored avatar URLs are not rewritten.
func (s *Store) SetThumbnail(thumbnail ThumbnailFunc) {
	if thumbnail == nil {
		thumbnail = func(string) string { return "" }
	}
	s.thumbnail = thumbnail
}

// Len returns the number of tracked rooms.
func (s *Store) Len() int {
	return len(s.rooms)
}

// Room returns a tracked room.
func (s *Store) Room(roomID id.RoomID) (Room, bool) {
	record, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return record.Room, true
}

// ApplyDelta merges a sync response into the store and returns the
// visible list for openPanelRoomID. ownUserID excludes the account
// itself from the direct-chat avatar fallback; it may be empty.
func (s *Store) ApplyDelta(response *messaging.SyncResponse, ownUserID id.UserID, openPanelRoomID id.RoomID) []Room {
	if response != nil {
		for _, roomID := range response.Rooms.JoinedRoomIDs() {
			s.applyRoom(roomID, response.Rooms.Join[roomID], ownUserID, openPanelRoomID)
		}
	}
	return s.Visible(openPanelRoomID)
}

func (s *Store) applyRoom(roomID id.RoomID, joined messaging.JoinedRoom, ownUserID id.UserID, openPanelRoomID id.RoomID) {
	unread := joined.UnreadNotifications.Total()
	favorite := false
	for _, event := range joined.AccountData.Events {
		if event.Type == messaging.EventTypeTag && event.HasTag(messaging.TagFavourite) {
			favorite = true
			break
		}
	}

	record, seen := s.rooms[roomID]
	if !seen && unread == 0 && !favorite && roomID != openPanelRoomID {
		return
	}
	if !seen {
		record = &Record{Room: Room{ID: roomID}, Sequence: s.nextSequence}
		s.nextSequence++
		s.rooms[roomID] = record
	}
	room := &record.Room

	room.Unread = unread
	room.IsFavorite = room.IsFavorite || favorite
	if joined.IsDirect {
		room.IsDirect = true
	}

	// State changes can also arrive as timeline events; later events
	// win.
	stateEvents := slices.Concat(joined.State.Events, stateOnly(joined.Timeline.Events))
	members := make(map[id.UserID]messaging.Event)
	var memberOrder []id.UserID
	avatarInDelta := false

	for _, event := range stateEvents {
		switch event.Type {
		case messaging.EventTypeRoomName:
			if name := event.ContentString("name"); name != "" {
				room.Name = name
				record.ExplicitName = true
			}
		case messaging.EventTypeCanonicalAlias:
			if alias := event.ContentString("alias"); alias != "" {
				room.CanonicalAlias = id.RoomAlias(alias)
			}
		case messaging.EventTypeEncryption:
			room.Encrypted = true
		case messaging.EventTypeRoomAvatar:
			if !event.HasStateKey("") {
				continue
			}
			if url := s.thumbnail(event.ContentString("url")); url != "" {
				room.AvatarURL = url
				record.ExplicitAvatar = true
				avatarInDelta = true
			}
		case messaging.EventTypeRoomMember:
			if event.StateKey == nil {
				continue
			}
			userID := id.UserID(*event.StateKey)
			if _, known := members[userID]; !known {
				memberOrder = append(memberOrder, userID)
			}
			members[userID] = event
		}
	}

	heroes := joined.Summary.Heroes
	if record.ExplicitName {
		room.DMPartnerID = ""
	} else if len(heroes) > 0 {
		if len(heroes) == 1 {
			room.DMPartnerID = heroes[0]
			room.IsDirect = true
		} else {
			room.DMPartnerID = ""
		}
		names := make([]string, len(heroes))
		for i, hero := range heroes {
			names[i] = displayName(hero, members)
		}
		room.Name = strings.Join(names, ", ")
	}
	if room.Name == "" {
		room.Name = UnnamedRoom
	}

	if room.IsDirect && !avatarInDelta && !record.ExplicitAvatar {
		if url := s.memberAvatar(heroes, memberOrder, members, ownUserID); url != "" {
			room.AvatarURL = url
		}
	}

	if events := joined.Timeline.Events; len(events) > 0 {
		room.Timestamp = max(room.Timestamp, events[len(events)-1].OriginServerTS)
	}
}

// memberAvatar picks a direct chat's avatar from its members: the first
// hero other than ownUserID with an avatar, else any other member with
// one, in event order.
func (s *Store) memberAvatar(heroes, memberOrder []id.UserID, members map[id.UserID]messaging.Event, ownUserID id.UserID) string {
	for _, candidates := range [][]id.UserID{heroes, memberOrder} {
		for _, userID := range candidates {
			if userID == ownUserID {
				continue
			}
			member, ok := members[userID]
			if !ok {
				continue
			}
			if url := s.thumbnail(member.ContentString("avatar_url")); url != "" {
				return url
			}
		}
	}
	return ""
}

// displayName returns a hero's member display name from this delta, or
// the localpart of its user ID.
func displayName(hero id.UserID, members map[id.UserID]messaging.Event) string {
	if member, ok := members[hero]; ok {
		if name := member.ContentString("displayname"); name != "" {
			return name
		}
	}
	return localpart(hero)
}

func stateOnly(events []messaging.Event) []messaging.Event {
	var state []messaging.Event
	for _, event := range events {
		if event.StateKey != nil {
			state = append(state, event)
		}
	}
	return state
}

// Visible returns the rooms to show: unread, favourite, or the open
// panel's room. Newest timestamp first; ties keep first-seen order.
func (s *Store) Visible(openPanelRoomID id.RoomID) []Room {
	var records []*Record
	for _, record := range s.rooms {
		if record.Room.Visible(openPanelRoomID) {
			records = append(records, record)
		}
	}
	slices.SortFunc(records, func(a, b *Record) int {
		if c := cmp.Compare(b.Room.Timestamp, a.Room.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	visible := make([]Room, len(records))
	for i, record := range records {
		visible[i] = record.Room
	}
	return visible
}

// AnyUnread reports whether any tracked room has unread messages.
func (s *Store) AnyUnread() bool {
	for _, record := range s.rooms {
		if record.Room.Unread > 0 {
			return true
		}
	}
	return false
}

// Records returns every tracked room in first-seen order.
func (s *Store) Records() []Record {
	records := make([]Record, 0, len(s.rooms))
	for _, record := range s.rooms {
		records = append(records, *record)
	}
	slices.SortFunc(records, func(a, b Record) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return records
}

// Restore replaces the store's contents with records. Records with an
// empty room ID are dropped; for duplicate IDs the last one wins.
func (s *Store) Restore(records []Record) {
	s.rooms = make(map[id.RoomID]*Record, len(records))
	s.nextSequence = 0
	for _, record := range records {
		if record.Room.ID == "" {
			continue
		}
		stored := record
		s.rooms[record.Room.ID] = &stored
		s.nextSequence = max(s.nextSequence, record.Sequence+1)
	}
}
