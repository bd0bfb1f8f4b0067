// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import "testing"

func TestNew(t *testing.T) {
	t.Run("valid size", func(t *testing.T) {
		buffer, err := New(64)
		if err != nil {
			t.Fatalf("New(64) failed: %v", err)
		}
		defer buffer.Close()
		if buffer.Len() != 64 {
			t.Errorf("expected length 64, got %d", buffer.Len())
		}
	})

	t.Run("non-positive size", func(t *testing.T) {
		if _, err := New(0); err == nil {
			t.Fatal("expected error for zero size")
		}
		if _, err := New(-1); err == nil {
			t.Fatal("expected error for negative size")
		}
	})
}

func TestNewFromBytes(t *testing.T) {
	source := []byte("syt_secret_token")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "syt_secret_token" {
		t.Errorf("expected %q, got %q", "syt_secret_token", got)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed: %d", index, value)
		}
	}

	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestClose(t *testing.T) {
	buffer, err := NewFromString("token")
	if err != nil {
		t.Fatalf("NewFromString failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading a closed buffer")
		}
	}()
	_ = buffer.String()
}
