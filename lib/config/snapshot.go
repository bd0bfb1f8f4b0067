// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"time"
)

// Snapshot is an immutable configuration value. Components receive a
// Snapshot by value; a configuration change produces a new Snapshot
// instead of mutating shared state.
type Snapshot struct {
	// Homeserver is the normalized base URL, without trailing slash.
	Homeserver string

	// AccessToken is the bearer token. Empty disables syncing.
	AccessToken string

	// SyncInterval is the configured cadence before the floor is applied.
	// Use [Snapshot.Interval] for the effective value.
	SyncInterval time.Duration

	Client string

	CacheDir       string
	CacheFreshness time.Duration
	CacheMaxAge    time.Duration
	CacheMaxBytes  int64

	StateFile           string
	SnapshotCompression string
	QRCodes             bool
}

// Complete reports whether both the homeserver and the token are set.
// An incomplete snapshot makes a sync a silent no-op.
func (s Snapshot) Complete() bool {
	return s.Homeserver != "" && s.AccessToken != ""
}

// Interval returns the effective sync interval: the configured value,
// raised to [MinimumSyncInterval].
func (s Snapshot) Interval() time.Duration {
	if s.SyncInterval < MinimumSyncInterval {
		return MinimumSyncInterval
	}
	return s.SyncInterval
}

// NormalizeHomeserver prefixes https:// when no scheme is present and
// strips trailing slashes. Empty input stays empty.
func NormalizeHomeserver(homeserver string) string {
	homeserver = strings.TrimSpace(homeserver)
	if homeserver == "" {
		return ""
	}
	if !strings.HasPrefix(homeserver, "http://") && !strings.HasPrefix(homeserver, "https://") {
		homeserver = "https://" + homeserver
	}
	return strings.TrimRight(homeserver, "/")
}
