// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so the sync loop and
// the avatar cache can be driven deterministically in tests.
//
// Production code holds a Clock and calls Now, After, or NewTicker on it
// instead of the time package. Real() returns the standard library
// behavior; Fake() returns a clock that moves only when Advance is
// called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	monitor := monitor.New(monitor.Options{Clock: c, ...})
//	go monitor.Run(ctx)
//	c.WaitForTimers(1)          // the loop registered its ticker
//	c.Advance(30 * time.Second) // fire one tick
package clock
