// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "encoding/json"

// LongPollTimeout is the /sync timeout in milliseconds once a cursor
// exists. Cold-start syncs use 0 so the first snapshot returns at once.
const LongPollTimeout = 30000

// StateEventTypes are the only state event types requested from /sync.
var StateEventTypes = []string{
	EventTypeRoomName,
	EventTypeRoomMember,
	EventTypeCanonicalAlias,
	EventTypeEncryption,
	EventTypeRoomAvatar,
}

var minimalFilter = buildMinimalFilter()

// MinimalFilter returns the inline JSON filter for /sync: the room
// state types above with lazy-loaded members, the latest timeline event
// only, m.tag room account data, and no presence or global account
// data.
func MinimalFilter() string {
	return minimalFilter
}

func buildMinimalFilter() string {
	roomFilter := map[string]any{
		"state": map[string]any{
			"types":             StateEventTypes,
			"lazy_load_members": true,
		},
		"timeline":     map[string]any{"limit": 1},
		"account_data": map[string]any{"types": []string{EventTypeTag}},
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}
