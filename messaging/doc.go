// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the slice of the Matrix client-server API a
// read-only status client needs: /sync with an inline filter, whoami,
// and authenticated media downloads.
//
// [Client] holds the homeserver URL and HTTP transport. [DirectSession]
// wraps a Client with an access token kept in mmap-backed
// [secret.Buffer] memory; callers must call Close to release it. The
// [Session] interface is what the rest of the module depends on.
//
// All API errors are returned as [*MatrixError] with the Matrix error
// code and HTTP status. [IsAuthFailure] recognizes 401/403, on which
// the sync cursor must be reset, and [IsCancellation] recognizes the
// benign context cancellation that happens at teardown. Request URLs
// are built by string concatenation rather than url.URL to avoid
// double-encoding of path segments.
//
// [MinimalFilter] is the /sync filter that keeps payloads small: only
// the state types needed to name and decorate a room, the single most
// recent timeline event, and m.tag account data.
package messaging
