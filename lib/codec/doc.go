// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration used for on-disk state.
//
// JSON is the format of everything that crosses the network (the Matrix
// client-server API). CBOR is the format of everything this process
// writes for itself, currently the monitor's state snapshot. Encoding
// uses Core Deterministic Encoding (RFC 8949 §4.2) so identical state
// produces identical bytes, which keeps snapshot rewrites idempotent.
package codec
