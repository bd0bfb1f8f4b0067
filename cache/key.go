// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// keyDomain is the BLAKE3 key for cache file names: ASCII
// "matrix-status.avatar.cache" zero-padded to 32 bytes. Changing it
// orphans every existing entry.
var keyDomain = [32]byte{
	'm', 'a', 't', 'r', 'i', 'x', '-', 's', 't', 'a', 't', 'u', 's', '.',
	'a', 'v', 'a', 't', 'a', 'r', '.', 'c', 'a', 'c', 'h', 'e',
	0, 0, 0, 0, 0, 0,
}

// keyLength is the length of a hex-encoded key.
const keyLength = 64

// Key returns the cache file name for url: 64 lowercase hex characters.
func Key(url string) string {
	hasher, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		panic("cache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(url))
	return hex.EncodeToString(hasher.Sum(nil))
}

func isKey(name string) bool {
	if len(name) != keyLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
