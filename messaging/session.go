// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"maunium.net/go/mautrix/id"
)

// Session is the set of Matrix operations the monitor and the avatar
// loader use. *DirectSession is the production implementation; tests
// may substitute their own.
type Session interface {
	// WhoAmI returns the user ID the access token belongs to.
	WhoAmI(ctx context.Context) (id.UserID, error)

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// FetchMedia downloads an absolute media URL.
	FetchMedia(ctx context.Context, mediaURL string) (*Media, error)

	// CloseIdleConnections drops idle keep-alive connections so the
	// next request dials afresh.
	CloseIdleConnections()

	// Close releases any resources held by the session. Idempotent.
	Close() error
}
