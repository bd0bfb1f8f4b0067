// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

// matrix-status polls a Matrix homeserver and prints the rooms that
// need attention: unread rooms and favourites, newest first.
//
// Usage:
//
//	matrix-status [--config PATH] [--once] [--log-level LEVEL]
//	matrix-status --open ROOM [--qr FILE]
//
// The configuration file is named by --config or the
// MATRIX_STATUS_CONFIG environment variable. SIGHUP reloads it;
// SIGUSR1 triggers an immediate sync.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"maunium.net/go/mautrix/id"

	"github.com/nurefexc/matrix-status/clientlink"
	"github.com/nurefexc/matrix-status/lib/atomicfile"
	"github.com/nurefexc/matrix-status/lib/config"
	"github.com/nurefexc/matrix-status/lib/process"
	"github.com/nurefexc/matrix-status/lib/version"
	"github.com/nurefexc/matrix-status/monitor"
)

// requestTimeout bounds every HTTP request. It must exceed the /sync
// long-poll timeout.
const requestTimeout = 90 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		once        bool
		logLevel    string
		openRoom    string
		qrPath      string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("matrix-status", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&once, "once", false, "sync once, print the room list, and exit")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flagSet.StringVar(&openRoom, "open", "", "print the launch URI and matrix.to link for a room ID and exit")
	flagSet.StringVar(&qrPath, "qr", "", "with --open, write a PNG QR code of the matrix.to link to this file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if showVersion {
		fmt.Printf("matrix-status %s\n", version.Info())
		return nil
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	snapshot := cfg.Snapshot()

	client, err := clientlink.ParseKind(snapshot.Client)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: requestTimeout}

	stdoutFD := int(os.Stdout.Fd())
	color := term.IsTerminal(stdoutFD)
	width := defaultWidth
	if color {
		if columns, _, err := term.GetSize(stdoutFD); err == nil {
			width = columns
		}
	}
	renderer := newTerminalRenderer(os.Stdout, color, width, client)

	statusMonitor, err := monitor.New(monitor.Config{
		Snapshot:   snapshot,
		Observer:   renderer,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer statusMonitor.Close()

	if loader := statusMonitor.Loader(); loader != nil {
		renderer.avatarCached = func(url string) bool {
			_, found := loader.Memory().Get(url)
			return found
		}
	}

	if openRoom != "" {
		return openCommand(ctx, statusMonitor, httpClient, snapshot, client, id.RoomID(openRoom), qrPath)
	}

	if !snapshot.Complete() {
		return fmt.Errorf("homeserver and access_token must both be configured")
	}

	if once {
		return statusMonitor.Refresh(ctx, snapshot)
	}

	go handleSignals(ctx, statusMonitor, configPath, logger)

	logger.Info("matrix-status starting",
		"version", version.Info(),
		"homeserver", snapshot.Homeserver,
		"interval", snapshot.Interval(),
	)
	statusMonitor.Run(ctx)
	logger.Info("matrix-status stopped")
	return nil
}

// openCommand prints how to reach a room: the launch URI for the
// configured client and the shareable matrix.to link. Rooms known from
// the state file are shown by their friendliest identifier.
func openCommand(ctx context.Context, statusMonitor *monitor.Monitor, httpClient *http.Client, snapshot config.Snapshot, client clientlink.Kind, roomID id.RoomID, qrPath string) error {
	room, known := statusMonitor.Room(roomID)
	if !known {
		room.ID = roomID
	}
	link := clientlink.MatrixToLink(room)

	fmt.Println(clientlink.URLFor(client, string(roomID)))
	fmt.Println(link)
	if snapshot.QRCodes {
		fmt.Println(clientlink.QRImageURL(link))
	}

	if qrPath == "" {
		return nil
	}
	image, err := clientlink.FetchQR(ctx, httpClient, link)
	if err != nil {
		return err
	}
	return atomicfile.Write(qrPath, image, 0o644)
}

// handleSignals reloads the configuration on SIGHUP and syncs
// immediately on SIGUSR1.
func handleSignals(ctx context.Context, statusMonitor *monitor.Monitor, configPath string, logger *slog.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case received := <-signals:
			switch received {
			case syscall.SIGHUP:
				cfg, err := loadConfig(configPath)
				if err != nil {
					logger.Error("configuration reload failed, keeping the previous one", "error", err)
					continue
				}
				statusMonitor.UpdateConfig(cfg.Snapshot())
				logger.Info("configuration reloaded")
			case syscall.SIGUSR1:
				go func() {
					err := statusMonitor.Refresh(ctx, statusMonitor.Snapshot())
					if errors.Is(err, monitor.ErrRefreshInFlight) {
						logger.Debug("manual sync skipped, refresh in flight")
					}
				}()
			}
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger returns a text logger when stderr is a terminal and a JSON
// logger otherwise.
func newLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	options := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
