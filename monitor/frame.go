// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies how a state file payload is compressed. The
// tag is the second byte of the file; values are format constants.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	CompressionZstd CompressionTag = 2
)

// frameVersion is the first byte of every state file.
const frameVersion = 1

// maxStateSize bounds the declared uncompressed size of a state file.
const maxStateSize = 64 << 20

// String returns the configuration name of the tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a snapshot_compression value. The empty
// string selects zstd.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "", "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

// encodeFrame wraps payload as version, tag, uvarint uncompressed
// length, then the (possibly compressed) bytes. Payloads that do not
// shrink are stored uncompressed.
func encodeFrame(payload []byte, tag CompressionTag) ([]byte, error) {
	body, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		body, tag = payload, CompressionNone
	} else if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 2+binary.MaxVarintLen64+len(body))
	frame = append(frame, frameVersion, byte(tag))
	frame = binary.AppendUvarint(frame, uint64(len(payload)))
	return append(frame, body...), nil
}

// decodeFrame reverses encodeFrame.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, fmt.Errorf("state frame truncated (%d bytes)", len(frame))
	}
	if frame[0] != frameVersion {
		return nil, fmt.Errorf("unsupported state frame version %d", frame[0])
	}
	tag := CompressionTag(frame[1])
	size, n := binary.Uvarint(frame[2:])
	if n <= 0 {
		return nil, errors.New("state frame has a malformed length")
	}
	if size > maxStateSize {
		return nil, fmt.Errorf("state frame declares %d bytes, limit is %d", size, maxStateSize)
	}
	return decompress(frame[2+n:], tag, int(size))
}

func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func decompress(body []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("uncompressed state: size %d does not match expected %d", len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("monitor: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxStateSize))
	if err != nil {
		panic("monitor: zstd decoder initialization failed: " + err.Error())
	}
}
