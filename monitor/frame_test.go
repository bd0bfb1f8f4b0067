// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("!room:example.org unread "), 200)
	random := make([]byte, 4096)
	rand.Read(random)

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		for name, payload := range map[string][]byte{
			"compressible": compressible,
			"random":       random,
			"empty":        {},
		} {
			t.Run(tag.String()+"/"+name, func(t *testing.T) {
				frame, err := encodeFrame(payload, tag)
				if err != nil {
					t.Fatalf("encodeFrame: %v", err)
				}
				decoded, err := decodeFrame(frame)
				if err != nil {
					t.Fatalf("decodeFrame: %v", err)
				}
				if !bytes.Equal(decoded, payload) {
					t.Errorf("round trip changed the payload")
				}
			})
		}
	}
}

func TestFrameCompressesWhenUseful(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 1000)
	frame, err := encodeFrame(payload, CompressionZstd)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if CompressionTag(frame[1]) != CompressionZstd {
		t.Errorf("tag = %v, want zstd", CompressionTag(frame[1]))
	}
	if len(frame) >= len(payload) {
		t.Errorf("frame is %d bytes for a %d byte payload", len(frame), len(payload))
	}

	random := make([]byte, 1024)
	rand.Read(random)
	frame, err = encodeFrame(random, CompressionLZ4)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if CompressionTag(frame[1]) != CompressionNone {
		t.Errorf("incompressible payload stored with tag %v", CompressionTag(frame[1]))
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	valid, err := encodeFrame([]byte("payload"), CompressionNone)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string][]byte{
		"empty":         {},
		"short":         {frameVersion, 0},
		"bad version":   append([]byte{9}, valid[1:]...),
		"unknown tag":   {frameVersion, 7, 1, 'x'},
		"size mismatch": {frameVersion, byte(CompressionNone), 5, 'x'},
		"truncated":     valid[:len(valid)-2],
	}
	for name, frame := range tests {
		if _, err := decodeFrame(frame); err == nil {
			t.Errorf("%s: decodeFrame accepted %v", name, frame)
		}
	}
}

func TestParseCompressionTag(t *testing.T) {
	for name, want := range map[string]CompressionTag{
		"":     CompressionZstd,
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZstd,
	} {
		got, err := ParseCompressionTag(name)
		if err != nil || got != want {
			t.Errorf("ParseCompressionTag(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("ParseCompressionTag accepted gzip")
	}
}
