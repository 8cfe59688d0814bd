package client

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"beacon/pkg/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type socketFixtures struct {
	socket    *Socket
	dialer    *fakeDialer
	scheduler *fakeScheduler
}

func createTestSocket(t *testing.T) socketFixtures {
	t.Helper()

	dialer := &fakeDialer{}
	scheduler := &fakeScheduler{}

	socket := NewSocket(SocketOptions{
		URL:       "ws://localhost:8081/ws",
		Token:     "tok",
		Dialer:    dialer,
		Scheduler: scheduler.Schedule,
		BaseDelay: time.Second,
	})
	t.Cleanup(socket.Disconnect)

	return socketFixtures{socket: socket, dialer: dialer, scheduler: scheduler}
}

func waitForState(t *testing.T, s *Socket, want State) {
	t.Helper()

	require.Eventually(t, func() bool { return s.State() == want }, time.Second, 5*time.Millisecond)
}

func TestSocket_ConnectOpensAndCarriesToken(t *testing.T) {
	fx := createTestSocket(t)
	fx.dialer.queue(newFakeConn())

	require.NoError(t, fx.socket.Connect(context.Background()))

	assert.Equal(t, StateOpen, fx.socket.State())
	require.Equal(t, 1, fx.dialer.Dials())
	assert.True(t, strings.HasSuffix(fx.dialer.urls[0], "/ws?token=tok"))
}

func TestSocket_ConnectIsNoOpWhileOpen(t *testing.T) {
	fx := createTestSocket(t)
	fx.dialer.queue(newFakeConn())

	require.NoError(t, fx.socket.Connect(context.Background()))
	require.NoError(t, fx.socket.Connect(context.Background()))

	assert.Equal(t, 1, fx.dialer.Dials())
}

func TestSocket_BackoffDoublesUntilExhausted(t *testing.T) {
	fx := createTestSocket(t)

	// Every dial fails.
	require.Error(t, fx.socket.Connect(context.Background()))
	for fx.scheduler.Fire() {
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}, fx.scheduler.Delays())
	assert.Equal(t, 6, fx.dialer.Dials())
	assert.Equal(t, StateIdle, fx.socket.State())
	assert.False(t, fx.scheduler.HasPending())

	// An explicit connect revives the exhausted socket.
	require.Error(t, fx.socket.Connect(context.Background()))
	assert.Len(t, fx.scheduler.Delays(), 6)
	assert.Equal(t, time.Second, fx.scheduler.Delays()[5])
}

func TestSocket_OpenResetsAttempts(t *testing.T) {
	fx := createTestSocket(t)
	fx.dialer.queue(errDialRefused, newFakeConn())

	require.Error(t, fx.socket.Connect(context.Background()))
	assert.Equal(t, 1, fx.socket.Attempts())

	require.True(t, fx.scheduler.Fire())
	assert.Equal(t, StateOpen, fx.socket.State())
	assert.Zero(t, fx.socket.Attempts())
}

func TestSocket_CloseClassification(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		retry bool
	}{
		{name: "normal closure", code: websocket.CloseNormalClosure, retry: false},
		{name: "policy violation", code: websocket.ClosePolicyViolation, retry: false},
		{name: "going away", code: websocket.CloseGoingAway, retry: true},
		{name: "abnormal closure", code: websocket.CloseAbnormalClosure, retry: true},
		{name: "internal error", code: websocket.CloseInternalServerErr, retry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := createTestSocket(t)
			conn := newFakeConn()
			fx.dialer.queue(conn)

			var mu sync.Mutex
			var got []Event
			fx.socket.On(EventDisconnected, func(ev Event) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, ev)
			})

			require.NoError(t, fx.socket.Connect(context.Background()))
			conn.closeWith(tt.code)
			waitForState(t, fx.socket, StateIdle)

			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()

				return len(got) == 1
			}, time.Second, 5*time.Millisecond)

			mu.Lock()
			assert.Equal(t, tt.code, got[0].Code)
			assert.Equal(t, !tt.retry, got[0].Clean)
			mu.Unlock()

			if tt.retry {
				require.Eventually(t, fx.scheduler.HasPending, time.Second, 5*time.Millisecond)
				assert.Equal(t, []time.Duration{time.Second}, fx.scheduler.Delays())
			} else {
				assert.Empty(t, fx.scheduler.Delays())
			}
		})
	}
}

func TestSocket_DisconnectIsCleanAndCancelsRetry(t *testing.T) {
	fx := createTestSocket(t)
	conn := newFakeConn()
	fx.dialer.queue(conn)

	var clean bool
	fx.socket.On(EventDisconnected, func(ev Event) { clean = ev.Clean })

	require.NoError(t, fx.socket.Connect(context.Background()))
	fx.socket.Disconnect()

	assert.Equal(t, StateIdle, fx.socket.State())
	assert.True(t, clean)
	assert.Empty(t, fx.scheduler.Delays())

	written := conn.Written()
	require.Len(t, written, 1)
}

func TestSocket_DispatchesEnvelopesByType(t *testing.T) {
	fx := createTestSocket(t)
	conn := newFakeConn()
	fx.dialer.queue(conn)

	counts := make(chan int64, 1)
	Subscribe(fx.socket, protocol.TypeUnreadCount, func(c protocol.UnreadCount) { counts <- c.Count })

	require.NoError(t, fx.socket.Connect(context.Background()))

	// A malformed frame is skipped and the connection stays open.
	conn.incoming <- []byte("{not json")
	conn.push(protocol.Unread(4))

	select {
	case got := <-counts:
		assert.Equal(t, int64(4), got)
	case <-time.After(time.Second):
		t.Fatal("unread_count not dispatched")
	}
	assert.Equal(t, StateOpen, fx.socket.State())
}

func TestSocket_UnsubscribeIsIdempotent(t *testing.T) {
	fx := createTestSocket(t)
	conn := newFakeConn()
	fx.dialer.queue(conn)

	var mu sync.Mutex
	var first, second int
	unsubscribe := fx.socket.On(protocol.TypeMarkAllRead, func(Event) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	fx.socket.On(protocol.TypeMarkAllRead, func(Event) {
		mu.Lock()
		second++
		mu.Unlock()
	})

	unsubscribe()
	assert.NotPanics(t, unsubscribe)

	require.NoError(t, fx.socket.Connect(context.Background()))
	conn.push(protocol.MarkAllRead())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return second == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Zero(t, first)
	mu.Unlock()
}

func TestSocket_UnsubscribeFromInsideHandler(t *testing.T) {
	fx := createTestSocket(t)
	conn := newFakeConn()
	fx.dialer.queue(conn)

	var mu sync.Mutex
	var self, other int

	var unsubscribe func()
	unsubscribe = fx.socket.On(protocol.TypeMarkAllRead, func(Event) {
		mu.Lock()
		self++
		mu.Unlock()

		unsubscribe()
		unsubscribe()
	})
	fx.socket.On(protocol.TypeMarkAllRead, func(Event) {
		mu.Lock()
		other++
		mu.Unlock()
	})

	require.NoError(t, fx.socket.Connect(context.Background()))
	conn.push(protocol.MarkAllRead())
	conn.push(protocol.MarkAllRead())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return other == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, self)
	mu.Unlock()
}

func TestSocket_StaleRetryDoesNotDialAfterDisconnect(t *testing.T) {
	fx := createTestSocket(t)

	require.Error(t, fx.socket.Connect(context.Background()))
	require.True(t, fx.scheduler.HasPending())

	fx.socket.mu.Lock()
	retryGen := fx.socket.generation
	fx.socket.mu.Unlock()

	fx.socket.Disconnect()

	// A retry that already passed its own check still must not dial.
	require.NoError(t, fx.socket.dial(context.Background(), retryGen))
	assert.Equal(t, 1, fx.dialer.Dials())
	assert.Equal(t, StateIdle, fx.socket.State())
	assert.False(t, fx.scheduler.HasPending())
}

func TestSocket_SendRequiresOpen(t *testing.T) {
	fx := createTestSocket(t)

	assert.ErrorIs(t, fx.socket.Send(protocol.TypeMarkAllRead, nil), ErrNotOpen)

	conn := newFakeConn()
	fx.dialer.queue(conn)
	require.NoError(t, fx.socket.Connect(context.Background()))

	require.NoError(t, fx.socket.Send(protocol.TypeMarkRead, protocol.NotificationRef{NotificationID: "n1"}))

	written := conn.Written()
	require.Len(t, written, 1)
	assert.JSONEq(t, `{"type":"mark_read","data":{"notificationId":"n1"}}`, string(written[0]))
}
