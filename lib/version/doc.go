// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for matrix-status.
//
// Four package-level variables are injected at build time via
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/nurefexc/matrix-status/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" during development builds and
// test runs. [Info] formats them for --version, [Full] adds the Go
// toolchain and platform, and [UserAgent] is what the messaging client
// sends with every request.
package version
