package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"beacon/pkg/protocol"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var errDialRefused = errors.New("connection refused")

type fakeConn struct {
	incoming chan []byte
	failures chan error
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		failures: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.incoming:
		return websocket.TextMessage, frame, nil
	case err := <-c.failures:
		return 0, nil, err
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))

	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })

	return nil
}

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) push(env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		panic(err)
	}
	c.incoming <- frame
}

func (c *fakeConn) closeWith(code int) {
	c.failures <- &websocket.CloseError{Code: code}
}

// fakeDialer hands out the queued results in order; once exhausted every dial fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []any
	urls    []string
}

func (d *fakeDialer) queue(results ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Dial(_ context.Context, url string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	if len(d.results) == 0 {
		return nil, errDialRefused
	}

	next := d.results[0]
	d.results = d.results[1:]
	if conn, ok := next.(*fakeConn); ok {
		return conn, nil
	}

	return nil, next.(error)
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.urls)
}

// fakeScheduler records delays; tests fire the pending callback by hand.
type fakeScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending func()
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays = append(s.delays, d)
	s.pending = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending = nil
	}
}

func (s *fakeScheduler) Fire() bool {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()

	return true
}

func (s *fakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Duration(nil), s.delays...)
}

func (s *fakeScheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending != nil
}
