// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/nurefexc/matrix-status/avatar"
	"github.com/nurefexc/matrix-status/clientlink"
	"github.com/nurefexc/matrix-status/roomstate"
)

const (
	lockGlyph       = "🔒"
	avatarGlyph     = "◉"
	emptyListText   = "No Active Messages"
	defaultWidth    = 80
	truncationGlyph = "…"
)

// terminalRenderer prints the visible room list whenever the monitor
// reports a change.
type terminalRenderer struct {
	out    io.Writer
	width  int
	client clientlink.Kind

	// avatarCached reports whether an avatar URL has a loaded image.
	// May be nil.
	avatarCached func(url string) bool

	header lipgloss.Style
	unread lipgloss.Style
	read   lipgloss.Style
	link   lipgloss.Style

	mu sync.Mutex
}

// newTerminalRenderer creates a renderer writing to out. Without color,
// the ASCII profile strips all styling.
func newTerminalRenderer(out io.Writer, color bool, width int, client clientlink.Kind) *terminalRenderer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	lip := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	lip.SetColorProfile(profile)

	if width <= 0 {
		width = defaultWidth
	}
	return &terminalRenderer{
		out:    out,
		width:  width,
		client: client,
		header: lip.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		unread: lip.NewStyle().Bold(true),
		read:   lip.NewStyle(),
		link:   lip.NewStyle().Faint(true),
	}
}

// OnVisibleListChanged implements monitor.Observer.
func (r *terminalRenderer) OnVisibleListChanged(rooms []roomstate.Room, anyUnread bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, r.render(rooms, anyUnread))
}

func (r *terminalRenderer) render(rooms []roomstate.Room, anyUnread bool) string {
	var builder strings.Builder

	title := "○ Matrix"
	if anyUnread {
		title = "● Matrix"
	}
	builder.WriteString(r.header.Render(title))
	builder.WriteByte('\n')

	if len(rooms) == 0 {
		builder.WriteString("  " + emptyListText + "\n")
		return builder.String()
	}

	for _, room := range rooms {
		builder.WriteString(r.roomLine(room))
		builder.WriteByte('\n')
		link := "    " + clientlink.URLFor(r.client, string(room.ID))
		builder.WriteString(r.link.Render(ansi.Truncate(link, r.width, truncationGlyph)))
		builder.WriteByte('\n')
	}
	return builder.String()
}

// roomLine formats one room: avatar marker, lock for encrypted rooms,
// then "(n) name" in bold when unread.
func (r *terminalRenderer) roomLine(room roomstate.Room) string {
	marker := avatar.FallbackGlyph(room.IsDirect)
	if room.AvatarURL != "" && r.avatarCached != nil && r.avatarCached(room.AvatarURL) {
		marker = avatarGlyph
	}

	prefix := "  " + marker + " "
	if room.Encrypted {
		prefix += lockGlyph + " "
	}

	label := room.Name
	style := r.read
	if room.Unread > 0 {
		label = fmt.Sprintf("(%d) %s", room.Unread, room.Name)
		style = r.unread
	}

	available := r.width - ansi.StringWidth(prefix)
	if available < 1 {
		available = 1
	}
	return prefix + style.Render(ansi.Truncate(label, available, truncationGlyph))
}
