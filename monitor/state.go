// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"maunium.net/go/mautrix/id"

	"github.com/nurefexc/matrix-status/lib/atomicfile"
	"github.com/nurefexc/matrix-status/lib/codec"
	"github.com/nurefexc/matrix-status/lib/config"
	"github.com/nurefexc/matrix-status/roomstate"
)

// persistedState is the state file payload.
type persistedState struct {
	// Homeserver the cursor belongs to. A state file written for
	// another homeserver is ignored.
	Homeserver string             `cbor:"1,keyasint"`
	Cursor     string             `cbor:"2,keyasint"`
	OwnUserID  id.UserID          `cbor:"3,keyasint,omitempty"`
	Rooms      []roomstate.Record `cbor:"4,keyasint"`
}

// stateLocked captures the persistable state. Caller holds m.mu.
func (m *Monitor) stateLocked() persistedState {
	return persistedState{
		Homeserver: m.homeserver,
		Cursor:     m.cursor,
		OwnUserID:  m.ownUserID,
		Rooms:      m.store.Records(),
	}
}

func (m *Monitor) saveState(snapshot config.Snapshot, state persistedState) {
	if err := writeStateFile(snapshot.StateFile, snapshot.SnapshotCompression, state); err != nil {
		m.logger.Warn("saving state file failed", "path", snapshot.StateFile, "error", err)
	}
}

// restoreState loads the state file into the store. Missing, corrupt,
// or foreign state files leave the monitor in a cold-start state. The
// restored rooms are kept only once whoami confirms they belong to the
// token's account.
func (m *Monitor) restoreState(snapshot config.Snapshot) {
	state, err := readStateFile(snapshot.StateFile)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		m.logger.Warn("ignoring unreadable state file", "path", snapshot.StateFile, "error", err)
		return
	}
	homeserver := config.NormalizeHomeserver(snapshot.Homeserver)
	if state.Homeserver != homeserver {
		m.logger.Info("ignoring state file for another homeserver",
			"path", snapshot.StateFile, "state_homeserver", state.Homeserver)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeserver = homeserver
	m.store.SetThumbnail(thumbnailFor(homeserver))
	m.store.Restore(state.Rooms)
	m.cursor = state.Cursor
	m.ownUserID = state.OwnUserID
	m.accountUnverified = true
	m.storeAccount = state.OwnUserID
	m.visible = m.store.Visible(m.openPanel)
	m.anyUnread = roomstate.AnyUnread(m.visible)
	m.logger.Info("restored state file", "path", snapshot.StateFile, "rooms", m.store.Len())
}

func writeStateFile(path, compression string, state persistedState) error {
	tag, err := ParseCompressionTag(compression)
	if err != nil {
		return err
	}
	payload, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	frame, err := encodeFrame(payload, tag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return atomicfile.Write(path, frame, 0o600)
}

func readStateFile(path string) (persistedState, error) {
	frame, err := os.ReadFile(path)
	if err != nil {
		return persistedState{}, err
	}
	payload, err := decodeFrame(frame)
	if err != nil {
		return persistedState{}, err
	}
	var state persistedState
	if err := codec.Unmarshal(payload, &state); err != nil {
		return persistedState{}, fmt.Errorf("decoding state: %w", err)
	}
	return state, nil
}
