// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache stores downloaded avatar images in two tiers.
//
// [DiskCache] keeps raw image bytes in a flat directory, one file per
// source URL, named by the hex BLAKE3 keyed hash of the URL. There is
// no manifest and no file extension: an entry's age is its file
// modification time and nothing else. Writes go through
// lib/atomicfile so a reader never sees a partial image.
//
// [MemoryCache] maps a URL to a decoded [Icon] for the lifetime of the
// process. It is safe for concurrent use.
//
// Neither tier decides freshness; the avatar loader compares
// [DiskEntry.ModTime] against its clock. Growth is bounded by
// [DiskCache.Prune] (age, then total size) and [MemoryCache.Retain].
package cache
