package handler

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"beacon/config"
	"beacon/internal/delivery/validator"
	"beacon/internal/realtime"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type recordingTransport struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingTransport) WriteMessage(_ int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), data...))

	return nil
}

func (r *recordingTransport) WriteControl(int, []byte, time.Time) error { return nil }

func (r *recordingTransport) SetWriteDeadline(time.Time) error { return nil }

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]byte(nil), r.frames...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()

	return e
}

// newTestDispatcher returns a dispatcher whose registry holds one connection for userID.
func newTestDispatcher(userID uuid.UUID) (*realtime.Dispatcher, *realtime.Registry, *recordingTransport) {
	logger := discardLogger()
	registry := realtime.NewRegistry(logger)
	transport := &recordingTransport{}
	registry.Add(realtime.NewConnection(userID, transport, realtime.ConnectionOptions{}))

	dispatcher := realtime.NewDispatcher(realtime.DispatcherParams{
		Config:   &config.Config{},
		Logger:   logger,
		Registry: registry,
	})

	return dispatcher, registry, transport
}
