// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	t.Run("fires on advance", func(t *testing.T) {
		clock := Fake(epoch)
		channel := clock.After(3 * time.Second)

		clock.Advance(2 * time.Second)
		select {
		case <-channel:
			t.Fatal("After fired before deadline")
		default:
		}

		clock.Advance(time.Second)
		select {
		case <-channel:
		default:
			t.Fatal("After did not fire at deadline")
		}
	})

	t.Run("zero duration fires immediately", func(t *testing.T) {
		clock := Fake(epoch)
		select {
		case <-clock.After(0):
		default:
			t.Fatal("After(0) should fire immediately")
		}
	})
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(10 * time.Second)
	defer ticker.Stop()

	clock.Advance(10 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired mid-interval")
	default:
	}

	ticker.Reset(time.Second)
	clock.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after Reset interval")
	}

	ticker.Stop()
	clock.Advance(time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	if clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", clock.PendingCount())
	}
	clock.Advance(time.Second)
	<-done
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount after fire = %d, want 0", clock.PendingCount())
	}
}
