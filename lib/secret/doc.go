// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the Matrix access token outside the Go heap.
//
// [Buffer] allocates its memory with mmap(MAP_ANONYMOUS), asks the
// kernel to keep it out of swap (mlock) and out of core dumps
// (MADV_DONTDUMP), and zeroes it on Close. The messaging session keeps
// its bearer token in a Buffer and converts it to a string only while
// building the Authorization header.
//
// Desktop sessions frequently run with a tiny RLIMIT_MEMLOCK. When
// mlock is refused the buffer is still allocated and zeroed on close,
// and [Buffer.Locked] reports false.
package secret
