// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for matrix-status.
//
// Configuration is loaded from a single file specified by either the
// MATRIX_STATUS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search and no
// environment override of individual values. YAML is the default
// format; files named *.json or *.jsonc are parsed as JSON with
// comments and trailing commas.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded.
//
// [Config.Snapshot] converts the loaded file into an immutable
// [Snapshot], the value the monitor and avatar loader consume.
// [Snapshot.Interval] applies the five second floor to the sync
// interval.
//
// This package depends on no other matrix-status packages.
package config
