// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	Cursor string         `cbor:"cursor"`
	Counts map[string]int `cbor:"counts"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := sample{
		Cursor: "s72594_4483_1934",
		Counts: map[string]int{"!b:x": 2, "!a:x": 1, "!c:x": 3},
	}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding of identical values differs")
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"cursor": "s1", "future_field": true})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Cursor != "s1" {
		t.Errorf("cursor = %q, want %q", decoded.Cursor, "s1")
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "Bob"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["name"] != "Bob" {
		t.Errorf("name = %v", asMap["name"])
	}
}
