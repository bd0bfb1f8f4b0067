// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package avatar turns Matrix content URIs into thumbnail URLs and
// loads the images behind them through the two cache tiers.
//
// [ThumbnailURL] is pure: mxc://server/media becomes an authenticated
// media thumbnail request on the configured homeserver. [FallbackURLs]
// expands that URL into the fixed retry chain across the three media
// API shapes homeservers have shipped (client v1, media v3, media r0).
//
// [Loader.Load] resolves a thumbnail URL to image bytes:
//
//   - memory hit: returned at once; if the icon's data is older than
//     the freshness window a background check refreshes it
//   - disk hit younger than the freshness window: promoted to memory
//   - otherwise the fallback chain is fetched in order, each URL once
//   - success is written to disk asynchronously and stored in memory
//   - total failure serves a stale disk copy if one exists
//   - with nothing to serve, the error wraps [ErrUnavailable] and the
//     caller shows [FallbackGlyph]
//
// Cancellation of the caller's context is reported as a wrapped
// context.Canceled and never logged above debug.
package avatar
