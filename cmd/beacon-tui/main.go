package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"beacon/internal/tui"
	"beacon/pkg/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func run() error {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("BEACON_API_URL", "http://localhost:8080"), "REST API base URL")
	wsURL := flag.String("ws", envOr("BEACON_WS_URL", "ws://localhost:3001/ws"), "realtime WebSocket URL")
	token := flag.String("token", os.Getenv("BEACON_TOKEN"), "access token")
	logPath := flag.String("log", os.Getenv("BEACON_LOG"), "write client logs to this file")
	flag.Parse()

	if *token == "" {
		return errors.New("an access token is required (-token or BEACON_TOKEN)")
	}

	logger, closeLog, err := newLogger(*logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	socket := client.NewSocket(client.SocketOptions{URL: *wsURL, Token: *token, Logger: logger})
	defer socket.Disconnect()

	inbox := client.NewSynchronizer(socket, client.NewAPI(*apiURL, *token), client.SynchronizerOptions{Logger: logger})
	if err := inbox.Start(context.Background()); err != nil {
		logger.Warn("[TUI] Initial fetch failed", slog.Any("error", err))
	}
	defer inbox.Close()

	p := tea.NewProgram(tui.NewApp(inbox), tea.WithAltScreen())

	// Send blocks until the program runs, so subscribe only after the first fetch.
	unsubscribe := inbox.OnChange(func(s client.Snapshot) {
		p.Send(tui.SnapshotMsg(s))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run tui")
	}

	return nil
}

// newLogger keeps the terminal clean: logs go to a file or nowhere.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}

	return slog.New(slog.NewJSONHandler(f, nil)), func() { _ = f.Close() }, nil
}
