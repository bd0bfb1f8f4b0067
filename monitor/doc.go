// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor drives the periodic Matrix sync. A [Monitor] owns the
// sync cursor, the room store, and the avatar loader. Each tick it
// fetches one delta with the minimal filter, merges it into the store,
// and notifies its [Observer] when the visible room list changed.
//
// Refreshes never overlap: a [Monitor.Refresh] call that finds another
// in flight returns [ErrRefreshInFlight] without touching the network.
// Authentication failures reset the cursor so the next tick starts
// cold; cancellation of the caller's context is not an error.
//
// When a state file is configured the cursor and rooms are persisted
// after every applied delta and restored at construction, so a restart
// resumes incrementally instead of re-downloading the initial sync.
package monitor
