// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package clientlink

import (
	"fmt"
	"strings"

	"github.com/nurefexc/matrix-status/roomstate"
)

// Kind selects the Matrix client rooms are opened in.
type Kind int

const (
	Web Kind = iota
	Element
	Fractal
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Web:
		return "web"
	case Element:
		return "element"
	case Fractal:
		return "fractal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind parses a configuration value. The empty string selects Web.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "web":
		return Web, nil
	case "element":
		return Element, nil
	case "fractal":
		return Fractal, nil
	default:
		return Web, fmt.Errorf("unknown client %q (expected web, element, or fractal)", name)
	}
}

const matrixToBase = "https://matrix.to"

// WebURL returns the matrix.to URL for roomID, or the matrix.to home
// page when roomID is empty.
func WebURL(roomID string) string {
	if roomID == "" {
		return matrixToBase
	}
	return matrixToBase + "/#/" + roomID
}

// ElementURL returns the Element desktop URI for roomID, or the bare
// scheme when roomID is empty.
func ElementURL(roomID string) string {
	if roomID == "" {
		return "element://"
	}
	return "element://vector/webapp/#/room/" + roomID
}

// FractalURL returns a matrix: URI that asks Fractal to join roomID.
// The room's server name is passed as the via hint when the ID has one.
//
//	!abc:example.org  →  matrix:roomid/abc%3Aexample.org?action=join&via=example.org
func FractalURL(roomID string) string {
	if roomID == "" {
		return "matrix:"
	}
	clean := strings.TrimPrefix(roomID, "!")
	uri := "matrix:roomid/" + strings.ReplaceAll(clean, ":", "%3A") + "?action=join"
	if _, server, found := strings.Cut(clean, ":"); found && server != "" {
		// Only the segment up to the next ':' is the via hint; a port
		// suffix is dropped.
		server, _, _ = strings.Cut(server, ":")
		uri += "&via=" + server
	}
	return uri
}

// URLFor returns the launch URI for roomID in the given client.
// Unknown kinds fall back to Web.
func URLFor(kind Kind, roomID string) string {
	switch kind {
	case Element:
		return ElementURL(roomID)
	case Fractal:
		return FractalURL(roomID)
	default:
		return WebURL(roomID)
	}
}

// PrettyID returns the most human-friendly identifier for a room: the
// direct-chat partner, else the canonical alias, else the room ID.
func PrettyID(room roomstate.Room) string {
	if room.DMPartnerID != "" {
		return string(room.DMPartnerID)
	}
	if room.CanonicalAlias != "" {
		return string(room.CanonicalAlias)
	}
	return string(room.ID)
}

// MatrixToLink returns the shareable matrix.to link for a room.
func MatrixToLink(room roomstate.Room) string {
	return matrixToBase + "/#/" + PrettyID(room)
}

