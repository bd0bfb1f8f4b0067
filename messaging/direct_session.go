// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/id"

	"github.com/nurefexc/matrix-status/lib/netutil"
	"github.com/nurefexc/matrix-status/lib/secret"
	"github.com/nurefexc/matrix-status/lib/version"
)

// DirectSession is an authenticated Matrix session.
// It wraps a Client with an access token for making authenticated API calls.
//
// The access token is stored in a secret.Buffer (mmap-backed, locked against
// swap, excluded from core dumps). The caller must call Close when the
// DirectSession is no longer needed.
type DirectSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      id.UserID
}

var _ Session = (*DirectSession)(nil)

// UserID returns the user ID the session was created with, which may
// be empty.
func (s *DirectSession) UserID() id.UserID {
	return s.userID
}

// Homeserver returns the base URL of the session's homeserver.
func (s *DirectSession) Homeserver() string {
	return s.client.baseURL
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a sync error to force
// the next request to establish a fresh TCP connection.
func (s *DirectSession) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// Close releases the access token memory (zeros, unlocks, unmaps).
// Idempotent.
func (s *DirectSession) Close() error {
	if s.accessToken != nil {
		return s.accessToken.Close()
	}
	return nil
}

// WhoAmI validates the access token and returns the user ID.
func (s *DirectSession) WhoAmI(ctx context.Context) (id.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// FetchMedia downloads an absolute media URL. The bearer token is only
// attached when the URL points at this session's homeserver, which is
// what authenticated media requires.
func (s *DirectSession) FetchMedia(ctx context.Context, mediaURL string) (*Media, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create media request: %w", err)
	}
	request.Header.Set("User-Agent", version.UserAgent())
	if strings.HasPrefix(mediaURL, s.client.baseURL+"/") {
		request.Header.Set("Authorization", "Bearer "+s.accessToken.String())
	}

	response, err := s.client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: media request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := netutil.ReadResponse(response.Body)
		return nil, fmt.Errorf("messaging: media fetch failed: %w", parseError(response.StatusCode, body))
	}

	data, err := netutil.ReadMedia(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: reading media body: %w", err)
	}
	return &Media{Data: data, ContentType: response.Header.Get("Content-Type")}, nil
}
