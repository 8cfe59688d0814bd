// Package realtime holds the connection-side half of the notification pipeline:
// the per-user connection registry, liveness probing, the handshake and the
// handling of client control messages.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrConnectionClosed is returned when writing to a connection that is no longer open.
var ErrConnectionClosed = errors.New("connection closed")

// Transport is the subset of *websocket.Conn a Connection writes through.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ConnectionOptions tune a single connection.
type ConnectionOptions struct {
	WriteTimeout time.Duration
	InboundRate  float64
	InboundBurst int
}

// Connection is one live transport session of an authenticated user.
type Connection struct {
	id        string
	userID    uuid.UUID
	transport Transport
	opts      ConnectionOptions
	limiter   *rate.Limiter

	writeMu      sync.Mutex
	awaitingPong atomic.Bool
	closed       atomic.Bool
	openedAt     time.Time
}

// NewConnection wraps transport for userID.
func NewConnection(userID uuid.UUID, transport Transport, opts ConnectionOptions) *Connection {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.InboundRate), max(opts.InboundBurst, 1))
	}

	return &Connection{
		id:        uuid.NewString(),
		userID:    userID,
		transport: transport,
		opts:      opts,
		limiter:   limiter,
		openedAt:  time.Now(),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) UserID() uuid.UUID { return c.userID }

func (c *Connection) OpenedAt() time.Time { return c.openedAt }

// IsOpen reports whether the connection has not been closed or terminated.
func (c *Connection) IsOpen() bool {
	return !c.closed.Load()
}

// AwaitingPong reports whether the last ping is still unanswered.
func (c *Connection) AwaitingPong() bool {
	return c.awaitingPong.Load()
}

// Allow consumes one token of the inbound rate limit.
func (c *Connection) Allow() bool {
	return c.limiter.Allow()
}

// Send writes one text frame. Writes are serialized per connection so frames keep their order.
func (c *Connection) Send(frame []byte) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		if err := c.transport.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}

	return errors.WithStack(c.transport.WriteMessage(websocket.TextMessage, frame))
}

// SendEnvelope encodes env and sends it.
func (c *Connection) SendEnvelope(env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	return c.Send(frame)
}

// Ping marks the connection as awaiting a pong and sends a ping frame.
func (c *Connection) Ping() error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}

	c.awaitingPong.Store(true)

	return errors.WithStack(c.transport.WriteControl(websocket.PingMessage, nil, c.deadline()))
}

// Pong clears the awaiting flag set by Ping.
func (c *Connection) Pong() {
	c.awaitingPong.Store(false)
}

// Terminate drops the transport without a close handshake.
func (c *Connection) Terminate() {
	if c.closed.Swap(true) {
		return
	}

	_ = c.transport.Close()
}

// CloseWith sends a close frame carrying code and reason, then drops the transport.
func (c *Connection) CloseWith(code int, reason string) {
	if c.closed.Swap(true) {
		return
	}

	_ = c.transport.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), c.deadline())
	_ = c.transport.Close()
}

func (c *Connection) deadline() time.Time {
	timeout := c.opts.WriteTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	return time.Now().Add(timeout)
}
