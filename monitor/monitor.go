// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"maunium.net/go/mautrix/id"

	"github.com/nurefexc/matrix-status/avatar"
	"github.com/nurefexc/matrix-status/cache"
	"github.com/nurefexc/matrix-status/lib/clock"
	"github.com/nurefexc/matrix-status/lib/config"
	"github.com/nurefexc/matrix-status/messaging"
	"github.com/nurefexc/matrix-status/roomstate"
)

// ErrRefreshInFlight is returned by Refresh when another refresh has
// not finished yet.
var ErrRefreshInFlight = errors.New("monitor: refresh already in flight")

// errNoSession is returned by FetchMedia before the first refresh
// created a session.
var errNoSession = errors.New("monitor: no Matrix session")

// PruneInterval is how often Run trims the avatar disk cache.
const PruneInterval = 24 * time.Hour

// Observer receives visible-list changes. Calls are made from the
// goroutine that ran the refresh and never overlap.
type Observer interface {
	OnVisibleListChanged(rooms []roomstate.Room, anyUnread bool)
}

// Config configures a Monitor.
type Config struct {
	// Snapshot is the initial configuration. Later changes arrive
	// through UpdateConfig.
	Snapshot config.Snapshot

	// Observer is notified of visible-list changes. May be nil.
	Observer Observer

	// HTTPClient is used for Matrix requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// Clock drives the sync ticker. If nil, the real clock is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Monitor polls a homeserver and maintains the visible room list.
type Monitor struct {
	snapshot        atomic.Pointer[config.Snapshot]
	intervalChanged chan struct{}

	observer   Observer
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger

	inFlight atomic.Bool

	// sessionMu is held for reading across every media request so the
	// session is never closed under one.
	sessionMu         sync.RWMutex
	session           messaging.Session
	sessionHomeserver string
	sessionToken      string

	// notifyMu serializes observer calls.
	notifyMu sync.Mutex

	mu         sync.Mutex
	store      *roomstate.Store
	homeserver string
	cursor     string
	ownUserID  id.UserID
	openPanel  id.RoomID
	visible    []roomstate.Room
	anyUnread  bool
	published  bool

	// accountUnverified is set after a restore or a token change, when
	// the tracked rooms may belong to an account other than the
	// token's. storeAccount is the account they were recorded for.
	accountUnverified bool
	storeAccount      id.UserID

	disk   *cache.DiskCache
	loader *avatar.Loader
}

// New creates a Monitor. When the snapshot names a cache directory an
// avatar loader backed by it is created; when it names a state file the
// previous state is restored from it.
func New(cfg Config) (*Monitor, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	m := &Monitor{
		intervalChanged: make(chan struct{}, 1),
		observer:        cfg.Observer,
		httpClient:      httpClient,
		clock:           clk,
		logger:          logger,
		store:           roomstate.NewStore(nil),
	}
	snapshot := cfg.Snapshot
	m.snapshot.Store(&snapshot)

	if snapshot.CacheDir != "" {
		disk, err := cache.NewDiskCache(snapshot.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
		loader, err := avatar.NewLoader(avatar.LoaderConfig{
			Fetcher:   m,
			Disk:      disk,
			Freshness: snapshot.CacheFreshness,
			Clock:     clk,
			Logger:    logger.With("component", "avatar"),
		})
		if err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
		m.disk = disk
		m.loader = loader
	}

	if snapshot.StateFile != "" {
		m.restoreState(snapshot)
	}
	return m, nil
}

// Snapshot returns the current configuration.
func (m *Monitor) Snapshot() config.Snapshot {
	return *m.snapshot.Load()
}

// UpdateConfig replaces the configuration. The next refresh uses it; a
// changed interval takes effect in Run immediately.
func (m *Monitor) UpdateConfig(snapshot config.Snapshot) {
	previous := m.snapshot.Swap(&snapshot)
	if previous.Interval() != snapshot.Interval() {
		select {
		case m.intervalChanged <- struct{}{}:
		default:
		}
	}
}

// Loader returns the avatar loader, or nil when no cache directory is
// configured.
func (m *Monitor) Loader() *avatar.Loader {
	return m.loader
}

// Visible returns the current visible list and aggregate unread flag.
func (m *Monitor) Visible() ([]roomstate.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible, m.anyUnread
}

// Room returns a tracked room, including ones not currently visible.
func (m *Monitor) Room(roomID id.RoomID) (roomstate.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Room(roomID)
}

// Cursor returns the sync cursor; empty before the first successful
// sync and after an authentication failure.
func (m *Monitor) Cursor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// OwnUserID returns the account's user ID once whoami succeeded.
func (m *Monitor) OwnUserID() id.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownUserID
}

// OpenPanel returns the room whose panel is open, or "".
func (m *Monitor) OpenPanel() id.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPanel
}

// SetOpenPanel records which room's panel is open ("" for none). The
// open room stays visible even when read, so the visible list is
// re-derived and observers are notified if it changed.
func (m *Monitor) SetOpenPanel(roomID id.RoomID) {
	m.mu.Lock()
	if m.openPanel == roomID {
		m.mu.Unlock()
		return
	}
	m.openPanel = roomID
	rooms, anyUnread, changed := m.publishLocked(m.store.Visible(roomID))
	m.mu.Unlock()

	if changed {
		m.notify(rooms, anyUnread)
	}
}

// Refresh performs one sync against the homeserver in snapshot. It is
// a silent no-op when the homeserver or token is missing. Cancellation
// of ctx returns nil.
func (m *Monitor) Refresh(ctx context.Context, snapshot config.Snapshot) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer m.inFlight.Store(false)

	homeserver := config.NormalizeHomeserver(snapshot.Homeserver)
	if homeserver == "" || snapshot.AccessToken == "" {
		m.logger.Debug("sync skipped, homeserver or access token not configured")
		return nil
	}

	session, err := m.sessionFor(homeserver, snapshot.AccessToken)
	if err != nil {
		m.logger.Warn("cannot create Matrix session", "homeserver", homeserver, "error", err)
		return err
	}

	if err := m.verifyAccount(ctx, session); err != nil {
		m.logger.Debug("sync cancelled")
		return nil
	}

	m.mu.Lock()
	since := m.cursor
	m.mu.Unlock()

	options := messaging.SyncOptions{
		Since:      since,
		SetTimeout: true,
		Filter:     messaging.MinimalFilter(),
	}
	if since != "" {
		options.Timeout = messaging.LongPollTimeout
	}

	response, err := session.Sync(ctx, options)
	if err != nil {
		switch {
		case messaging.IsCancellation(err):
			m.logger.Debug("sync cancelled")
			return nil
		case messaging.IsAuthFailure(err):
			m.mu.Lock()
			m.cursor = ""
			m.mu.Unlock()
			m.logger.Warn("homeserver rejected the access token, sync cursor reset",
				"homeserver", homeserver, "status", messaging.StatusCode(err))
			return fmt.Errorf("monitor: %w", err)
		case messaging.IsMatrixError(err, messaging.ErrCodeLimitExceeded):
			m.logger.Warn("homeserver is rate limiting sync", "homeserver", homeserver)
			return fmt.Errorf("monitor: %w", err)
		default:
			// A broken keep-alive connection would fail the next
			// request the same way.
			session.CloseIdleConnections()
			m.logger.Warn("sync failed", "homeserver", homeserver, "error", err)
			return fmt.Errorf("monitor: %w", err)
		}
	}

	ownUserID := m.resolveOwnUserID(ctx, session)

	m.mu.Lock()
	if m.homeserver != homeserver {
		m.homeserver = homeserver
		m.store.SetThumbnail(thumbnailFor(homeserver))
	}
	m.cursor = response.NextBatch
	visible := m.store.ApplyDelta(response, ownUserID, m.openPanel)
	rooms, anyUnread, changed := m.publishLocked(visible)
	state := m.stateLocked()
	m.mu.Unlock()

	m.logger.Debug("sync applied",
		"rooms", len(response.Rooms.Join),
		"visible", len(rooms),
		"changed", changed,
	)

	if snapshot.StateFile != "" {
		m.saveState(snapshot, state)
	}

	if changed {
		if err := m.prefetchAvatars(ctx, rooms); err != nil {
			// Cancelled mid-prefetch; the process is shutting down.
			return nil
		}
		m.notify(rooms, anyUnread)
	}
	return nil
}

func thumbnailFor(homeserver string) roomstate.ThumbnailFunc {
	return func(contentURI string) string {
		return avatar.ThumbnailURL(homeserver, contentURI)
	}
}

// resolveOwnUserID asks the homeserver once per session who the token
// belongs to. Failures leave it unknown until the next refresh.
func (m *Monitor) resolveOwnUserID(ctx context.Context, session messaging.Session) id.UserID {
	m.mu.Lock()
	ownUserID := m.ownUserID
	m.mu.Unlock()
	if ownUserID != "" {
		return ownUserID
	}

	userID, err := session.WhoAmI(ctx)
	if err != nil {
		m.logger.Debug("whoami failed", "error", err)
		return ""
	}
	m.mu.Lock()
	m.ownUserID = userID
	m.mu.Unlock()
	return userID
}

// verifyAccount confirms the tracked rooms belong to the account the
// token authenticates as. Rooms recorded for any other account are
// discarded together with the cursor. When whoami fails the saved
// cursor is not trusted for this sync and the check repeats on the
// next one. Only cancellation is returned.
func (m *Monitor) verifyAccount(ctx context.Context, session messaging.Session) error {
	m.mu.Lock()
	pending, expected := m.accountUnverified, m.storeAccount
	m.mu.Unlock()
	if !pending {
		return nil
	}

	userID, err := session.WhoAmI(ctx)
	if err != nil {
		if messaging.IsCancellation(err) {
			return err
		}
		m.logger.Debug("whoami failed, syncing from scratch", "error", err)
		m.mu.Lock()
		m.cursor = ""
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountUnverified = false
	m.storeAccount = ""
	m.ownUserID = userID
	if userID == expected {
		return nil
	}
	m.logger.Info("discarding rooms recorded for another account",
		"recorded_for", expected, "user_id", userID, "rooms", m.store.Len())
	m.store = roomstate.NewStore(thumbnailFor(m.homeserver))
	m.cursor = ""
	return nil
}

// publishLocked stores next as the current visible list and reports
// whether observers need to hear about it. The first publication always
// counts as a change. Caller holds m.mu.
func (m *Monitor) publishLocked(next []roomstate.Room) ([]roomstate.Room, bool, bool) {
	anyUnread := roomstate.AnyUnread(next)
	changed := !m.published || !roomstate.ListsEqual(m.visible, next) || anyUnread != m.anyUnread
	m.visible = next
	m.anyUnread = anyUnread
	m.published = true
	return next, anyUnread, changed
}

func (m *Monitor) notify(rooms []roomstate.Room, anyUnread bool) {
	if m.observer == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.observer.OnVisibleListChanged(rooms, anyUnread)
}

// prefetchAvatars warms the avatar cache for rooms and drops memory
// entries no longer shown. Only cancellation is returned.
func (m *Monitor) prefetchAvatars(ctx context.Context, rooms []roomstate.Room) error {
	if m.loader == nil {
		return nil
	}
	urls := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if room.AvatarURL != "" {
			urls = append(urls, room.AvatarURL)
		}
	}
	if dropped := m.loader.Memory().Retain(urls); dropped > 0 {
		m.logger.Debug("dropped avatars no longer visible", "count", dropped)
	}
	return m.loader.Prefetch(ctx, urls)
}

// sessionFor returns a session for homeserver and token, replacing the
// current one when either changed.
func (m *Monitor) sessionFor(homeserver, token string) (messaging.Session, error) {
	m.sessionMu.RLock()
	session := m.session
	current := session != nil && m.sessionHomeserver == homeserver && m.sessionToken == token
	m.sessionMu.RUnlock()
	if current {
		return session, nil
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserver,
		HTTPClient:    m.httpClient,
		Logger:        m.logger,
	})
	if err != nil {
		return nil, err
	}
	next, err := client.SessionFromToken("", token)
	if err != nil {
		return nil, err
	}

	m.sessionMu.Lock()
	previous := m.session
	m.session = next
	m.sessionHomeserver = homeserver
	m.sessionToken = token
	m.sessionMu.Unlock()

	if previous != nil {
		previous.Close()
		m.logger.Info("Matrix session replaced", "homeserver", homeserver)

		// A different token may belong to a different account; the
		// cursor is dropped and the rooms are kept only once whoami
		// confirms the account.
		m.mu.Lock()
		if !m.accountUnverified {
			m.accountUnverified = true
			m.storeAccount = m.ownUserID
		}
		m.cursor = ""
		m.ownUserID = ""
		m.mu.Unlock()
	}
	return next, nil
}

// FetchMedia downloads mediaURL through the current session so
// homeserver media requests carry the access token.
func (m *Monitor) FetchMedia(ctx context.Context, mediaURL string) (*messaging.Media, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	if m.session == nil {
		return nil, errNoSession
	}
	return m.session.FetchMedia(ctx, mediaURL)
}

// Run refreshes immediately and then every Snapshot().Interval() until
// ctx is cancelled. It also trims the avatar disk cache at start and
// every PruneInterval.
func (m *Monitor) Run(ctx context.Context) {
	m.pruneCache()
	m.tick(ctx)

	interval := m.Snapshot().Interval()
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	pruneTicker := m.clock.NewTicker(PruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.intervalChanged:
			if next := m.Snapshot().Interval(); next != interval {
				m.logger.Info("sync interval changed", "from", interval, "to", next)
				interval = next
				ticker.Reset(interval)
			}
		case <-ticker.C:
			m.tick(ctx)
		case <-pruneTicker.C:
			m.pruneCache()
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	err := m.Refresh(ctx, m.Snapshot())
	if errors.Is(err, ErrRefreshInFlight) {
		m.logger.Debug("tick skipped, refresh in flight")
	}
}

func (m *Monitor) pruneCache() {
	if m.disk == nil {
		return
	}
	snapshot := m.Snapshot()
	result, err := m.disk.Prune(m.clock.Now(), snapshot.CacheMaxAge, snapshot.CacheMaxBytes)
	if err != nil {
		m.logger.Warn("avatar cache prune failed", "dir", m.disk.Dir(), "error", err)
		return
	}
	if result.Removed > 0 {
		m.logger.Info("avatar cache pruned",
			"removed", result.Removed,
			"removed_bytes", result.RemovedBytes,
			"remaining", result.Remaining,
			"remaining_bytes", result.RemainingBytes,
		)
	}
}

// Close stops background avatar work and releases the session.
func (m *Monitor) Close() error {
	if m.loader != nil {
		m.loader.Close()
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}
