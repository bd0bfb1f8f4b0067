// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomstate holds the canonical room model built from /sync
// deltas and derives the list of rooms worth showing.
//
// [Store.ApplyDelta] merges one sync response into the model. Each
// delta only overrides what it carries: a room's name, alias, avatar,
// and timestamp persist across deltas that omit them. Unread counts
// are replaced on every delta. Encryption and the favourite tag are
// sticky: once seen they stay set, because the minimal sync filter
// does not guarantee the events are replayed.
//
// A room that has ever been shown stays in the model forever. What
// the user sees is a filtered view: [Store.Visible] keeps rooms with
// unread messages, favourites, and the room whose panel is open,
// newest activity first, ties in the order rooms were first seen.
//
// [ListsEqual] compares two visible lists so callers can skip
// redundant redraws.
//
// Store is not safe for concurrent use; the monitor serializes access.
package roomstate
