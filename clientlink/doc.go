// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package clientlink builds the links used to open a room outside this
// program: launch URIs for the supported Matrix clients, a shareable
// matrix.to link, and a QR code image of that link.
//
// Everything except [FetchQR] is pure string construction.
package clientlink
