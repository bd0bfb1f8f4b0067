// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nurefexc/matrix-status/lib/atomicfile"
)

// DiskEntry is a cached file read from disk.
type DiskEntry struct {
	Data    []byte
	ModTime time.Time
}

// Age returns how old the entry is at now.
func (e DiskEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.ModTime)
}

// DiskCache is a directory of URL-keyed image files.
type DiskCache struct {
	dir string
}

// NewDiskCache opens (creating if needed) the cache directory.
func NewDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (d *DiskCache) Dir() string {
	return d.dir
}

// Path returns the file path that holds url's entry.
func (d *DiskCache) Path(url string) string {
	return filepath.Join(d.dir, Key(url))
}

// Get reads url's entry. A missing entry returns ok=false and a nil
// error.
func (d *DiskCache) Get(url string) (entry DiskEntry, ok bool, err error) {
	path := d.Path(url)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DiskEntry{}, false, nil
	}
	if err != nil {
		return DiskEntry{}, false, fmt.Errorf("cache: stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Pruned between stat and read.
		return DiskEntry{}, false, nil
	}
	if err != nil {
		return DiskEntry{}, false, fmt.Errorf("cache: reading %s: %w", path, err)
	}
	return DiskEntry{Data: data, ModTime: info.ModTime()}, true, nil
}

// Put writes url's entry, replacing any previous one. The new file's
// modification time is the write time.
func (d *DiskCache) Put(url string, data []byte) error {
	if err := atomicfile.Write(d.Path(url), data, 0o600); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// PruneResult reports what [DiskCache.Prune] removed.
type PruneResult struct {
	Removed        int
	RemovedBytes   int64
	Remaining      int
	RemainingBytes int64
}

// Prune removes entries whose modification time is older than maxAge
// relative to now, then removes the oldest remaining entries until the
// total size is at most maxBytes. A zero maxAge or maxBytes disables
// that bound. Leftover temporary files older than maxAge are removed
// too; other files in the directory are left alone.
func (d *DiskCache) Prune(now time.Time, maxAge time.Duration, maxBytes int64) (PruneResult, error) {
	directoryEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return PruneResult{}, fmt.Errorf("cache: listing %s: %w", d.dir, err)
	}

	type file struct {
		name    string
		size    int64
		modTime time.Time
	}

	var result PruneResult
	var errs []error
	var kept []file

	remove := func(f file) {
		if err := os.Remove(filepath.Join(d.dir, f.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			return
		}
		result.Removed++
		result.RemovedBytes += f.size
	}

	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.Type().IsRegular() {
			continue
		}
		name := directoryEntry.Name()
		temporary := strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
		if !isKey(name) && !temporary {
			continue
		}
		info, err := directoryEntry.Info()
		if err != nil {
			continue
		}
		f := file{name: name, size: info.Size(), modTime: info.ModTime()}

		expired := maxAge > 0 && now.Sub(f.modTime) > maxAge
		if expired {
			remove(f)
			continue
		}
		if !temporary {
			kept = append(kept, f)
		}
	}

	var total int64
	for _, f := range kept {
		total += f.size
	}

	if maxBytes > 0 && total > maxBytes {
		slices.SortFunc(kept, func(a, b file) int {
			return a.modTime.Compare(b.modTime)
		})
		for len(kept) > 0 && total > maxBytes {
			remove(kept[0])
			total -= kept[0].size
			kept = kept[1:]
		}
	}

	result.Remaining = len(kept)
	result.RemainingBytes = total
	return result, errors.Join(errs...)
}
