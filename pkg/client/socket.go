package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"beacon/pkg/protocol"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxAttempts bounds consecutive reconnects after unclean closes.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the first reconnect delay; attempt n waits BaseDelay * 2^(n-1).
	DefaultBaseDelay = time.Second
)

// Local events, emitted alongside the envelope types received from the server.
const (
	EventDisconnected protocol.MessageType = "disconnected"
	EventError        protocol.MessageType = "error"
)

// State is the lifecycle state of a Socket.
type State uint8

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Conn is the part of *websocket.Conn the Socket uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	return f(ctx, url, header)
}

// Scheduler runs fn after d and returns a function cancelling it.
type Scheduler func(d time.Duration, fn func()) (cancel func())

// WebSocketDialer dials with a gorilla websocket.Dialer.
func WebSocketDialer(d *websocket.Dialer) Dialer {
	return DialerFunc(func(ctx context.Context, url string, header http.Header) (Conn, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}

		return conn, nil
	})
}

// TimerScheduler schedules with time.AfterFunc.
func TimerScheduler(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)

	return func() { t.Stop() }
}

// Event is delivered to subscribers. Type is an envelope type or a local event.
type Event struct {
	Type protocol.MessageType
	Data []byte

	// Set on disconnected events
	Code  int
	Clean bool

	// Set on error events
	Err error
}

// Handler receives events of the type it subscribed to.
type Handler func(Event)

// SocketOptions configures a Socket. URL and Token are required.
type SocketOptions struct {
	URL         string
	Token       string
	Dialer      Dialer
	Scheduler   Scheduler
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

// Socket keeps one WebSocket connection to the realtime server and reconnects it with
// exponential backoff after unclean closes.
type Socket struct {
	url         string
	token       string
	dialer      Dialer
	schedule    Scheduler
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	generation  uint64
	attempts    int
	cancelRetry func()

	writeMu sync.Mutex

	subsMu    sync.RWMutex
	subs      map[protocol.MessageType]map[uint64]Handler
	nextSubID uint64
}

// NewSocket creates an Idle socket.
func NewSocket(opts SocketOptions) *Socket {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer(websocket.DefaultDialer)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Socket{
		url:         opts.URL,
		token:       opts.Token,
		dialer:      opts.Dialer,
		schedule:    opts.Scheduler,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		logger:      opts.Logger,
		subs:        make(map[protocol.MessageType]map[uint64]Handler),
	}
}

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Attempts returns the number of reconnects scheduled since the socket was last Open.
func (s *Socket) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts
}

// Connect dials the server unless a connection is already open or being opened.
// It resets the retry budget, so it also revives a socket that gave up reconnecting.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()

		return nil
	}
	s.attempts = 0
	s.stopRetryLocked()
	gen := s.generation
	s.mu.Unlock()

	return s.dial(ctx, gen)
}

// Disconnect closes the connection cleanly. No reconnect follows.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.stopRetryLocked()
	conn := s.conn
	wasActive := s.state != StateIdle
	s.conn = nil
	s.state = StateIdle
	s.generation++
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = conn.Close()
	}

	if wasActive {
		s.emit(Event{Type: EventDisconnected, Code: websocket.CloseNormalClosure, Clean: true})
	}
}

// Send writes a control envelope. While the socket is not Open the message is dropped.
func (s *Socket) Send(t protocol.MessageType, data any) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()

	if !open || conn == nil {
		s.logger.Warn("[Socket] Dropping message, socket not open", slog.String("type", string(t)))

		return ErrNotOpen
	}

	env, err := protocol.NewEnvelope(t, data)
	if err != nil {
		return errors.Wrap(err, "build envelope")
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return errors.Wrap(conn.WriteMessage(websocket.TextMessage, frame), "write envelope")
}

// On subscribes fn to events of type t. The returned function unsubscribes and may be
// called any number of times, including from inside a handler.
func (s *Socket) On(t protocol.MessageType, fn Handler) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	if s.subs[t] == nil {
		s.subs[t] = make(map[uint64]Handler)
	}
	s.subs[t][id] = fn
	s.subsMu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()

			delete(s.subs[t], id)
			if len(s.subs[t]) == 0 {
				delete(s.subs, t)
			}
		})
	}
}

// Subscribe decodes the data of every event of type t into T before calling fn.
// Events whose data does not decode are reported on the error event.
func Subscribe[T any](s *Socket, t protocol.MessageType, fn func(T)) (unsubscribe func()) {
	return s.On(t, func(ev Event) {
		var payload T
		env := protocol.Envelope{Type: ev.Type, Data: ev.Data}
		if err := env.DecodeData(&payload); err != nil {
			s.emit(Event{Type: EventError, Err: errors.Wrapf(err, "decode %s", t)})

			return
		}
		fn(payload)
	})
}

func (s *Socket) emit(ev Event) {
	s.subsMu.RLock()
	handlers := make([]Handler, 0, len(s.subs[ev.Type]))
	for _, h := range s.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	s.subsMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (s *Socket) endpoint() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", errors.Wrap(err, "parse socket url")
	}
	q := u.Query()
	q.Set("token", s.token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// dial moves Idle -> Connecting -> Open, or back to Idle when the dial fails.
// It does nothing once the generation has moved past from: a Disconnect or another
// dial got there first.
func (s *Socket) dial(ctx context.Context, from uint64) error {
	s.mu.Lock()
	if s.state != StateIdle || s.generation != from {
		s.mu.Unlock()

		return nil
	}
	s.state = StateConnecting
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	endpoint, err := s.endpoint()
	if err == nil {
		var conn Conn
		conn, err = s.dialer.Dial(ctx, endpoint, nil)
		if err == nil {
			return s.opened(gen, conn)
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		// Disconnect won the race
		s.mu.Unlock()

		return err
	}
	s.state = StateIdle
	s.mu.Unlock()

	s.logger.Warn("[Socket] Dial failed", slog.Any("error", err))
	s.emit(Event{Type: EventError, Err: err})
	s.emit(Event{Type: EventDisconnected, Code: websocket.CloseAbnormalClosure})
	s.scheduleReconnect()

	return err
}

func (s *Socket) opened(gen uint64, conn Conn) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		_ = conn.Close()

		return nil
	}
	s.state = StateOpen
	s.conn = conn
	s.attempts = 0
	s.mu.Unlock()

	s.logger.Info("[Socket] Open")
	go s.readLoop(gen, conn)

	return nil
}

func (s *Socket) readLoop(gen uint64, conn Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			s.closed(gen, err)

			return
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warn("[Socket] Ignoring malformed frame", slog.Any("error", err))

			continue
		}

		s.emit(Event{Type: env.Type, Data: env.Data})
	}
}

// closed handles the end of the connection of generation gen.
func (s *Socket) closed(gen uint64, err error) {
	s.mu.Lock()
	if s.generation != gen || s.state != StateOpen {
		s.mu.Unlock()

		return
	}
	conn := s.conn
	s.conn = nil
	s.state = StateIdle
	s.mu.Unlock()

	_ = conn.Close()

	code, clean := classifyClose(err)
	s.logger.Info("[Socket] Closed", slog.Int("code", code), slog.Bool("clean", clean))
	if !clean {
		s.emit(Event{Type: EventError, Err: err})
	}
	s.emit(Event{Type: EventDisconnected, Code: code, Clean: clean})

	if !clean {
		s.scheduleReconnect()
	}
}

// classifyClose reports the close code and whether it ends the session for good.
// A policy violation means the server rejected the credentials, which a retry cannot fix.
func classifyClose(err error) (code int, clean bool) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.ClosePolicyViolation:
			return closeErr.Code, true
		default:
			return closeErr.Code, false
		}
	}

	return websocket.CloseAbnormalClosure, false
}

func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle || s.cancelRetry != nil {
		return
	}

	if s.attempts >= s.maxAttempts {
		s.logger.Warn("[Socket] Giving up reconnecting", slog.Int("attempts", s.attempts))

		return
	}

	s.attempts++
	delay := s.baseDelay << (s.attempts - 1)
	gen := s.generation

	s.logger.Info("[Socket] Reconnecting",
		slog.Int("attempt", s.attempts),
		slog.Duration("delay", delay),
	)

	s.cancelRetry = s.schedule(delay, func() {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()

			return
		}
		s.cancelRetry = nil
		s.mu.Unlock()

		_ = s.dial(context.Background(), gen)
	})
}

func (s *Socket) stopRetryLocked() {
	if s.cancelRetry != nil {
		s.cancelRetry()
		s.cancelRetry = nil
	}
}
