// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"testing"
)

func TestMemoryCache(t *testing.T) {
	memory := NewMemoryCache()

	if _, ok := memory.Get("a"); ok {
		t.Fatal("empty cache returned an icon")
	}

	memory.Put("a", Icon{Data: []byte("1"), ContentType: "image/png"})
	memory.Put("b", Icon{Data: []byte("2")})
	memory.Put("a", Icon{Data: []byte("3")})

	icon, ok := memory.Get("a")
	if !ok || string(icon.Data) != "3" {
		t.Errorf("expected replaced icon, got %+v (ok %v)", icon, ok)
	}
	if memory.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", memory.Len())
	}

}

func TestMemoryCacheRetain(t *testing.T) {
	memory := NewMemoryCache()
	for _, url := range []string{"a", "b", "c"} {
		memory.Put(url, Icon{})
	}

	dropped := memory.Retain([]string{"b", "z"})
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
	if _, ok := memory.Get("b"); !ok {
		t.Error("retained icon missing")
	}
	if memory.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", memory.Len())
	}
}

func TestMemoryCacheConcurrent(t *testing.T) {
	memory := NewMemoryCache()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := string(rune('a' + i))
			for range 100 {
				memory.Put(url, Icon{})
				memory.Get(url)
				memory.Retain([]string{url})
			}
		}()
	}
	wg.Wait()
}
