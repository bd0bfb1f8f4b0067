// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"time"
)

// Icon is a resolved avatar image.
type Icon struct {
	Data        []byte
	ContentType string

	// LoadedAt is when the bytes were obtained, from disk or network.
	LoadedAt time.Time
}

// MemoryCache maps source URLs to icons. The zero value is not usable;
// call NewMemoryCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Icon
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Icon)}
}

// Get returns url's icon.
func (m *MemoryCache) Get(url string) (Icon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	icon, ok := m.entries[url]
	return icon, ok
}

// Put stores url's icon, replacing any previous one.
func (m *MemoryCache) Put(url string, icon Icon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[url] = icon
}

// Len returns the number of cached icons.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Retain drops every icon whose URL is not in urls and returns how many
// were dropped.
func (m *MemoryCache) Retain(urls []string) int {
	keep := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		keep[url] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for url := range m.entries {
		if _, ok := keep[url]; !ok {
			delete(m.entries, url)
			dropped++
		}
	}
	return dropped
}
