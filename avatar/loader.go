// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nurefexc/matrix-status/cache"
	"github.com/nurefexc/matrix-status/lib/clock"
	"github.com/nurefexc/matrix-status/messaging"
)

// ErrUnavailable means no image could be produced from memory, disk,
// or network.
var ErrUnavailable = errors.New("avatar: unavailable")

// DefaultFreshness is how long a cached image is served without
// contacting the homeserver.
const DefaultFreshness = 3 * time.Hour

const defaultConcurrency = 4

// Fetcher downloads an absolute media URL. messaging.Session
// implementations satisfy it.
type Fetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) (*messaging.Media, error)
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Fetcher performs network downloads. Required.
	Fetcher Fetcher

	// Disk is the persistent tier. Required.
	Disk *cache.DiskCache

	// Memory is the in-process tier. If nil, a new one is created.
	Memory *cache.MemoryCache

	// Freshness is the disk-entry freshness window. Zero means
	// DefaultFreshness.
	Freshness time.Duration

	// Concurrency bounds simultaneous network fetches. Zero means 4.
	Concurrency int

	// Clock provides the current time. If nil, the real clock is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Loader resolves thumbnail URLs to images through the cache tiers.
// It is safe for concurrent use.
type Loader struct {
	fetcher   Fetcher
	disk      *cache.DiskCache
	memory    *cache.MemoryCache
	freshness time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	// fetches bounds concurrent network requests across Load,
	// Prefetch, and background refreshes.
	fetches     *semaphore.Weighted
	concurrency int

	// loads collapses concurrent Load calls for the same URL. Flights
	// run under ctx so one caller giving up does not fail the others.
	loads singleflight.Group

	// ctx scopes work that outlives a single call. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	refreshingMu sync.Mutex
	refreshing   map[string]struct{}

	flights    sync.WaitGroup
	background sync.WaitGroup
	writes     sync.WaitGroup
}

// NewLoader creates a Loader.
func NewLoader(config LoaderConfig) (*Loader, error) {
	if config.Fetcher == nil {
		return nil, errors.New("avatar: Fetcher is required")
	}
	if config.Disk == nil {
		return nil, errors.New("avatar: Disk is required")
	}

	memory := config.Memory
	if memory == nil {
		memory = cache.NewMemoryCache()
	}
	freshness := config.Freshness
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     config.Fetcher,
		disk:        config.Disk,
		memory:      memory,
		freshness:   freshness,
		clock:       clk,
		logger:      logger,
		fetches:     semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
		refreshing:  make(map[string]struct{}),
	}, nil
}

// Memory returns the loader's memory tier.
func (l *Loader) Memory() *cache.MemoryCache {
	return l.memory
}

// Load returns the image for thumbnailURL. The error wraps
// ErrUnavailable when nothing could be served, or context.Canceled
// when ctx was cancelled first. Cancelling ctx abandons only this
// caller's wait; a shared in-flight load keeps running for the others.
func (l *Loader) Load(ctx context.Context, thumbnailURL string) (cache.Icon, error) {
	if thumbnailURL == "" {
		return cache.Icon{}, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return cache.Icon{}, fmt.Errorf("avatar: loading %s: %w", thumbnailURL, err)
	}

	if icon, ok := l.memory.Get(thumbnailURL); ok {
		if l.clock.Now().Sub(icon.LoadedAt) >= l.freshness {
			l.scheduleRefresh(thumbnailURL)
		}
		return icon, nil
	}

	results := l.loads.DoChan(thumbnailURL, func() (any, error) {
		l.flights.Add(1)
		defer l.flights.Done()
		return l.load(l.ctx, thumbnailURL)
	})
	select {
	case result := <-results:
		if result.Err != nil {
			return cache.Icon{}, result.Err
		}
		return result.Val.(cache.Icon), nil
	case <-ctx.Done():
		return cache.Icon{}, fmt.Errorf("avatar: loading %s: %w", thumbnailURL, ctx.Err())
	}
}

// load is the disk-then-network path for a memory miss.
func (l *Loader) load(ctx context.Context, thumbnailURL string) (cache.Icon, error) {
	// A flight that finished between the caller's memory miss and
	// this one starting has already filled memory.
	if icon, ok := l.memory.Get(thumbnailURL); ok {
		return icon, nil
	}

	entry, onDisk, err := l.disk.Get(thumbnailURL)
	if err != nil {
		l.logger.Debug("avatar disk read failed", "url", thumbnailURL, "error", err)
		onDisk = false
	}

	if onDisk && entry.Age(l.clock.Now()) < l.freshness {
		icon := iconFromDisk(entry)
		l.memory.Put(thumbnailURL, icon)
		return icon, nil
	}

	icon, fetchErr := l.fetch(ctx, thumbnailURL)
	if fetchErr == nil {
		l.writeAsync(thumbnailURL, icon.Data)
		l.memory.Put(thumbnailURL, icon)
		return icon, nil
	}
	if messaging.IsCancellation(fetchErr) {
		l.logger.Debug("avatar fetch cancelled", "url", thumbnailURL)
		return cache.Icon{}, fetchErr
	}

	if onDisk {
		l.logger.Debug("serving stale avatar", "url", thumbnailURL,
			"age", entry.Age(l.clock.Now()), "error", fetchErr)
		icon := iconFromDisk(entry)
		l.memory.Put(thumbnailURL, icon)
		return icon, nil
	}

	l.logger.Debug("avatar unavailable", "url", thumbnailURL, "error", fetchErr)
	return cache.Icon{}, fmt.Errorf("%w: %w", ErrUnavailable, fetchErr)
}

// fetch walks the fallback chain, trying each URL exactly once.
func (l *Loader) fetch(ctx context.Context, thumbnailURL string) (cache.Icon, error) {
	if err := l.fetches.Acquire(ctx, 1); err != nil {
		return cache.Icon{}, fmt.Errorf("avatar: waiting for fetch slot: %w", err)
	}
	defer l.fetches.Release(1)

	var errs []error
	for _, candidate := range FallbackURLs(thumbnailURL) {
		media, err := l.fetcher.FetchMedia(ctx, candidate)
		if err == nil && len(media.Data) == 0 {
			err = errors.New("avatar: empty media body")
		}
		if err == nil {
			contentType := media.ContentType
			if contentType == "" {
				contentType = http.DetectContentType(media.Data)
			}
			return cache.Icon{
				Data:        media.Data,
				ContentType: contentType,
				LoadedAt:    l.clock.Now(),
			}, nil
		}
		if messaging.IsCancellation(err) || ctx.Err() != nil {
			cause := ctx.Err()
			if cause == nil {
				cause = err
			}
			return cache.Icon{}, fmt.Errorf("avatar: fetching %s: %w", candidate, cause)
		}
		errs = append(errs, err)
	}
	return cache.Icon{}, errors.Join(errs...)
}

// scheduleRefresh checks the disk copy of an aged memory entry in the
// background. A fresh disk copy replaces the memory entry; a missing or
// stale one triggers a refetch. At most one refresh per URL runs at a
// time.
func (l *Loader) scheduleRefresh(thumbnailURL string) {
	l.refreshingMu.Lock()
	if _, running := l.refreshing[thumbnailURL]; running {
		l.refreshingMu.Unlock()
		return
	}
	l.refreshing[thumbnailURL] = struct{}{}
	l.refreshingMu.Unlock()

	l.background.Add(1)
	go func() {
		defer l.background.Done()
		defer func() {
			l.refreshingMu.Lock()
			delete(l.refreshing, thumbnailURL)
			l.refreshingMu.Unlock()
		}()

		entry, onDisk, err := l.disk.Get(thumbnailURL)
		if err == nil && onDisk && entry.Age(l.clock.Now()) < l.freshness {
			l.memory.Put(thumbnailURL, iconFromDisk(entry))
			return
		}

		icon, err := l.fetch(l.ctx, thumbnailURL)
		if err != nil {
			l.logger.Debug("background avatar refresh failed", "url", thumbnailURL, "error", err)
			return
		}
		l.writeAsync(thumbnailURL, icon.Data)
		l.memory.Put(thumbnailURL, icon)
	}()
}

// writeAsync persists data without blocking the caller. Failures only
// cost a future refetch.
func (l *Loader) writeAsync(thumbnailURL string, data []byte) {
	l.writes.Add(1)
	go func() {
		defer l.writes.Done()
		if err := l.disk.Put(thumbnailURL, data); err != nil {
			l.logger.Debug("avatar disk write failed", "url", thumbnailURL, "error", err)
		}
	}()
}

// Prefetch loads every URL with bounded concurrency so a subsequent
// render finds them in memory. Unavailable images are skipped; only
// cancellation is returned.
func (l *Loader) Prefetch(ctx context.Context, thumbnailURLs []string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(l.concurrency)

	seen := make(map[string]struct{}, len(thumbnailURLs))
	for _, thumbnailURL := range thumbnailURLs {
		if thumbnailURL == "" {
			continue
		}
		if _, duplicate := seen[thumbnailURL]; duplicate {
			continue
		}
		seen[thumbnailURL] = struct{}{}

		group.Go(func() error {
			_, err := l.Load(groupCtx, thumbnailURL)
			if messaging.IsCancellation(err) {
				return err
			}
			return nil
		})
	}
	return group.Wait()
}

// Wait blocks until in-flight loads and background work finish.
func (l *Loader) Wait() {
	l.flights.Wait()
	l.background.Wait()
	l.writes.Wait()
}

// Close cancels outstanding network work and waits for it to drain.
// Loads after Close fail with a cancellation error.
func (l *Loader) Close() {
	l.cancel()
	l.Wait()
}

func iconFromDisk(entry cache.DiskEntry) cache.Icon {
	return cache.Icon{
		Data:        entry.Data,
		ContentType: http.DetectContentType(entry.Data),
		LoadedAt:    entry.ModTime,
	}
}
