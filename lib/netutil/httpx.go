// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds how much of an HTTP response body is read into
// memory.
package netutil

import (
	"fmt"
	"io"
)

// MaxResponseSize caps JSON API responses. An initial /sync snapshot
// for an account in a few hundred rooms is a few megabytes with the
// minimal filter; 64 MiB leaves room for large accounts while still
// stopping a misbehaving server from exhausting memory.
const MaxResponseSize int64 = 64 << 20

// MaxMediaSize caps thumbnail and QR image downloads.
const MaxMediaSize int64 = 8 << 20

// ReadResponse reads body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ReadMedia reads body up to MaxMediaSize bytes. A body that exceeds
// the limit is an error rather than a silently truncated image.
func ReadMedia(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxMediaSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxMediaSize {
		return nil, fmt.Errorf("media body exceeds %d bytes", MaxMediaSize)
	}
	return data, nil
}

// ErrorBody returns a bounded string form of an error response body for
// inclusion in error messages.
func ErrorBody(body []byte) string {
	const maxLength = 512
	if len(body) > maxLength {
		return string(body[:maxLength]) + "..."
	}
	return string(body)
}
