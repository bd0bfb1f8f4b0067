// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "MATRIX_STATUS_CONFIG"

// MinimumSyncInterval is the floor applied to the configured sync
// interval. Shorter values are raised to it.
const MinimumSyncInterval = 5 * time.Second

const (
	defaultSyncInterval = 30
	defaultFreshness    = 3 * time.Hour
	defaultMaxAge       = 30 * 24 * time.Hour
	defaultMaxBytes     = 64 << 20
)

// Config is the on-disk configuration.
type Config struct {
	// Homeserver is the base URL of the Matrix homeserver. A bare host
	// name gets an https:// scheme.
	Homeserver string `yaml:"homeserver" json:"homeserver"`

	// AccessToken is the bearer token used for every request. Mutually
	// exclusive with AccessTokenFile.
	AccessToken string `yaml:"access_token" json:"access_token"`

	// AccessTokenFile is a path to a file whose trimmed content is the
	// access token.
	AccessTokenFile string `yaml:"access_token_file" json:"access_token_file"`

	// SyncInterval is the polling cadence in seconds. Values below five
	// seconds are raised to five.
	SyncInterval int `yaml:"sync_interval" json:"sync_interval"`

	// Client selects the preferred Matrix client for room links:
	// web, element, or fractal. Empty means web.
	Client string `yaml:"client" json:"client"`

	// Cache configures the avatar cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// StateFile enables the on-disk state snapshot when non-empty.
	StateFile string `yaml:"state_file" json:"state_file"`

	// SnapshotCompression is none, lz4, or zstd. Default: zstd.
	SnapshotCompression string `yaml:"snapshot_compression" json:"snapshot_compression"`

	// QRCodes enables QR code fetching for room links.
	QRCodes bool `yaml:"qr_codes" json:"qr_codes"`
}

// CacheConfig configures the avatar cache. Durations use Go duration
// syntax ("3h", "720h").
type CacheConfig struct {
	// Dir is the disk cache directory.
	// Default: the user cache directory + /matrix-status/avatars
	Dir string `yaml:"dir" json:"dir"`

	// Freshness is how long a disk entry is served without refetching.
	// Default: 3h
	Freshness string `yaml:"freshness" json:"freshness"`

	// MaxAge is the age past which Prune deletes an entry.
	// Default: 720h
	MaxAge string `yaml:"max_age" json:"max_age"`

	// MaxBytes bounds the total size of the disk cache.
	// Default: 64 MiB
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// Default returns the configuration used as the base before loading a
// file. Homeserver and token are empty: a config without them loads
// fine and produces a monitor that does nothing.
func Default() *Config {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		cacheRoot = filepath.Join(homeDir, ".cache")
	}

	return &Config{
		SyncInterval: defaultSyncInterval,
		Client:       "web",
		Cache: CacheConfig{
			Dir:       filepath.Join(cacheRoot, "matrix-status", "avatars"),
			Freshness: defaultFreshness.String(),
			MaxAge:    defaultMaxAge.String(),
			MaxBytes:  defaultMaxBytes,
		},
		SnapshotCompression: "zstd",
	}
}

// Load loads configuration from the MATRIX_STATUS_CONFIG environment
// variable. There is no discovery: if the variable is unset, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files ending
// in .json or .jsonc are parsed as JSON with comments and trailing
// commas allowed; anything else is YAML.
//
// Environment variables do not override config values. The only
// expansion performed is ${HOME}-style variables in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cfg.AccessTokenFile != "" {
		data, err := os.ReadFile(cfg.AccessTokenFile)
		if err != nil {
			return nil, fmt.Errorf("reading access token file: %w", err)
		}
		cfg.AccessToken = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

// loadFile parses a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.AccessTokenFile = expandVars(c.AccessTokenFile, vars)
	c.Cache.Dir = expandVars(c.Cache.Dir, vars)
	c.StateFile = expandVars(c.StateFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. A missing homeserver
// or token is not an error.
func (c *Config) Validate() error {
	var errs []error

	if c.AccessToken != "" && c.AccessTokenFile != "" {
		errs = append(errs, errors.New("access_token and access_token_file are mutually exclusive"))
	}

	if c.SyncInterval < 0 {
		errs = append(errs, fmt.Errorf("sync_interval must not be negative, got %d", c.SyncInterval))
	}

	clients := []string{"", "web", "element", "fractal"}
	if !contains(clients, c.Client) {
		errs = append(errs, fmt.Errorf("client must be one of: web, element, fractal (got %q)", c.Client))
	}

	compressions := []string{"", "none", "lz4", "zstd"}
	if !contains(compressions, c.SnapshotCompression) {
		errs = append(errs, fmt.Errorf("snapshot_compression must be one of: none, lz4, zstd (got %q)", c.SnapshotCompression))
	}

	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required"))
	}
	for _, field := range []struct{ name, value string }{
		{"cache.freshness", c.Cache.Freshness},
		{"cache.max_age", c.Cache.MaxAge},
	} {
		if field.value == "" {
			continue
		}
		if duration, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		} else if duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", field.name))
		}
	}
	if c.Cache.MaxBytes < 0 {
		errs = append(errs, errors.New("cache.max_bytes must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the cache directory and the state file's parent
// directory if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Cache.Dir}
	if c.StateFile != "" {
		paths = append(paths, filepath.Dir(c.StateFile))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// Snapshot returns an immutable view of the configuration with the
// homeserver normalized and durations parsed. Unparseable durations
// fall back to their defaults; [Validate] reports them at load time.
func (c *Config) Snapshot() Snapshot {
	snapshot := Snapshot{
		Homeserver:          NormalizeHomeserver(c.Homeserver),
		AccessToken:         c.AccessToken,
		SyncInterval:        time.Duration(c.SyncInterval) * time.Second,
		Client:              c.Client,
		CacheDir:            c.Cache.Dir,
		CacheFreshness:      parseDuration(c.Cache.Freshness, defaultFreshness),
		CacheMaxAge:         parseDuration(c.Cache.MaxAge, defaultMaxAge),
		CacheMaxBytes:       c.Cache.MaxBytes,
		StateFile:           c.StateFile,
		SnapshotCompression: c.SnapshotCompression,
		QRCodes:             c.QRCodes,
	}
	if snapshot.Client == "" {
		snapshot.Client = "web"
	}
	if snapshot.SnapshotCompression == "" {
		snapshot.SnapshotCompression = "zstd"
	}
	return snapshot
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
