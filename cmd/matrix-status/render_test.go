// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nurefexc/matrix-status/clientlink"
	"github.com/nurefexc/matrix-status/roomstate"
)

func TestRenderEmpty(t *testing.T) {
	var out bytes.Buffer
	renderer := newTerminalRenderer(&out, false, 80, clientlink.Web)
	renderer.OnVisibleListChanged(nil, false)

	if !strings.Contains(out.String(), emptyListText) {
		t.Errorf("output = %q, want %q", out.String(), emptyListText)
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("output contains escape sequences without color: %q", out.String())
	}
}

func TestRenderRooms(t *testing.T) {
	var out bytes.Buffer
	renderer := newTerminalRenderer(&out, false, 80, clientlink.Element)
	renderer.avatarCached = func(url string) bool { return url == "https://hs/a" }

	renderer.OnVisibleListChanged([]roomstate.Room{
		{ID: "!a:x", Name: "Ops", Unread: 3, Encrypted: true, AvatarURL: "https://hs/a"},
		{ID: "!b:x", Name: "Bob", IsDirect: true, IsFavorite: true},
	}, true)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "●") {
		t.Errorf("header %q does not show unread", lines[0])
	}
	if want := "  " + avatarGlyph + " " + lockGlyph + " (3) Ops"; lines[1] != want {
		t.Errorf("line = %q, want %q", lines[1], want)
	}
	if want := "    element://vector/webapp/#/room/!a:x"; lines[2] != want {
		t.Errorf("link = %q, want %q", lines[2], want)
	}
	if want := "  👤 Bob"; lines[3] != want {
		t.Errorf("line = %q, want %q", lines[3], want)
	}
}

func TestRenderTruncatesLongNames(t *testing.T) {
	var out bytes.Buffer
	renderer := newTerminalRenderer(&out, false, 20, clientlink.Web)
	line := renderer.roomLine(roomstate.Room{ID: "!a:x", Name: strings.Repeat("long name ", 10), Unread: 1})

	if !strings.HasSuffix(line, truncationGlyph) {
		t.Errorf("line %q was not truncated", line)
	}
}
