package realtime

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	pings    int
	closeMsg []byte
	closed   bool
	writeErr error
	pingErr  error
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), data...))

	return nil
}

func (f *fakeTransport) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch messageType {
	case websocket.PingMessage:
		if f.pingErr != nil {
			return f.pingErr
		}
		f.pings++
	case websocket.CloseMessage:
		f.closeMsg = data
	}

	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeTransport) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.frames
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *fakeTransport) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pings
}

var errBrokenPipe = errors.New("broken pipe")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
