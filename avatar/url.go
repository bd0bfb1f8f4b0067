// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package avatar

import (
	"net/url"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/id"
)

// ThumbnailSize is the edge length, in pixels, requested for avatars.
const ThumbnailSize = 64

// Media path prefixes, newest first. A thumbnail URL built by
// ThumbnailURL always starts with the first.
const (
	mediaPathV1 = "/_matrix/client/v1/media/thumbnail/"
	mediaPathV3 = "/_matrix/media/v3/thumbnail/"
	mediaPathR0 = "/_matrix/media/r0/thumbnail/"
)

var thumbnailQuery = "?width=" + strconv.Itoa(ThumbnailSize) +
	"&height=" + strconv.Itoa(ThumbnailSize) + "&method=crop"

// ThumbnailURL returns the authenticated-media thumbnail URL for an
// mxc:// content URI, or "" when homeserver is empty or contentURI is
// not a valid mxc://server/media-id reference.
func ThumbnailURL(homeserver, contentURI string) string {
	homeserver = strings.TrimRight(homeserver, "/")
	if homeserver == "" {
		return ""
	}
	parsed, err := id.ParseContentURI(contentURI)
	if err != nil || parsed.Homeserver == "" || parsed.FileID == "" {
		return ""
	}
	return homeserver + mediaPathV1 +
		url.PathEscape(parsed.Homeserver) + "/" + url.PathEscape(parsed.FileID) +
		thumbnailQuery
}

// FallbackURLs returns the fetch chain for a thumbnail URL: the URL
// itself, then the media v3 rewrite, then the media r0 rewrite. URLs
// not on the client v1 media path have no fallbacks.
func FallbackURLs(thumbnailURL string) []string {
	if !strings.Contains(thumbnailURL, mediaPathV1) {
		return []string{thumbnailURL}
	}
	return []string{
		thumbnailURL,
		strings.Replace(thumbnailURL, mediaPathV1, mediaPathV3, 1),
		strings.Replace(thumbnailURL, mediaPathV1, mediaPathR0, 1),
	}
}

// Glyphs shown when no avatar image is available.
const (
	DirectGlyph = "👤"
	GroupGlyph  = "👥"
)

// FallbackGlyph returns the placeholder for a room without an avatar.
func FallbackGlyph(isDirect bool) string {
	if isDirect {
		return DirectGlyph
	}
	return GroupGlyph
}
