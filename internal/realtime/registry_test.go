package realtime

import (
	"testing"

	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(userID uuid.UUID) (*Connection, *fakeTransport) {
	transport := &fakeTransport{}

	return NewConnection(userID, transport, ConnectionOptions{}), transport
}

func TestRegistry_SendToUserFansOutIdenticalFrames(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userID := uuid.New()

	c1, t1 := newTestConnection(userID)
	c2, t2 := newTestConnection(userID)
	other, t3 := newTestConnection(uuid.New())
	registry.Add(c1)
	registry.Add(c2)
	registry.Add(other)

	env := protocol.MustEnvelope(protocol.TypeNotification, protocol.Notification{ID: "n1", Title: "hi"})
	delivered := registry.SendToUser(userID, env)

	assert.Equal(t, 2, delivered)
	require.Len(t, t1.Frames(), 1)
	require.Len(t, t2.Frames(), 1)
	assert.Equal(t, t1.Frames()[0], t2.Frames()[0])
	assert.Empty(t, t3.Frames())

	decoded, err := protocol.Decode(t1.Frames()[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeNotification, decoded.Type)
}

func TestRegistry_SendToUnknownUserIsNoop(t *testing.T) {
	registry := NewRegistry(discardLogger())

	assert.Zero(t, registry.SendToUser(uuid.New(), protocol.Connected()))
}

func TestRegistry_SendToUserExcept(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userID := uuid.New()

	origin, originTransport := newTestConnection(userID)
	peer, peerTransport := newTestConnection(userID)
	registry.Add(origin)
	registry.Add(peer)

	delivered := registry.SendToUserExcept(userID, origin.ID(), protocol.MarkAllRead())

	assert.Equal(t, 1, delivered)
	assert.Empty(t, originTransport.Frames())
	assert.Len(t, peerTransport.Frames(), 1)
}

func TestRegistry_RemoveDropsEmptyEntries(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userID := uuid.New()

	c1, _ := newTestConnection(userID)
	c2, _ := newTestConnection(userID)
	registry.Add(c1)
	registry.Add(c2)

	assert.True(t, registry.Remove(c1))
	assert.Contains(t, registry.ConnectedUsers(), userID)
	assert.Equal(t, 1, registry.ConnectionCount())

	assert.True(t, registry.Remove(c2))
	assert.NotContains(t, registry.ConnectedUsers(), userID)
	assert.Zero(t, registry.ConnectionCount())

	assert.False(t, registry.Remove(c2))
}

func TestRegistry_SkipsClosedConnections(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userID := uuid.New()

	open, openTransport := newTestConnection(userID)
	closed, closedTransport := newTestConnection(userID)
	registry.Add(open)
	registry.Add(closed)
	closed.Terminate()

	delivered := registry.SendToUser(userID, protocol.Unread(2))

	assert.Equal(t, 1, delivered)
	assert.Len(t, openTransport.Frames(), 1)
	assert.Empty(t, closedTransport.Frames())
}

func TestRegistry_WriteFailureTerminatesConnection(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userID := uuid.New()

	broken, brokenTransport := newTestConnection(userID)
	brokenTransport.writeErr = errBrokenPipe
	registry.Add(broken)

	delivered := registry.SendToUser(userID, protocol.Unread(1))

	assert.Zero(t, delivered)
	assert.False(t, broken.IsOpen())
	assert.True(t, brokenTransport.Closed())
	assert.NotContains(t, registry.ConnectedUsers(), userID)
}

func TestRegistry_StatsAndCloseAll(t *testing.T) {
	registry := NewRegistry(discardLogger())
	userA, userB := uuid.New(), uuid.New()

	a1, a1Transport := newTestConnection(userA)
	a2, _ := newTestConnection(userA)
	b1, _ := newTestConnection(userB)
	registry.Add(a1)
	registry.Add(a2)
	registry.Add(b1)

	registry.SendToUser(userA, protocol.Connected())

	stats := registry.Stats()
	assert.Equal(t, 3, stats.Connections)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, int64(2), stats.MessagesSent)
	assert.Positive(t, stats.BytesSent)

	closedCount := registry.CloseAll(websocket.CloseGoingAway, "shutdown")
	assert.Equal(t, 3, closedCount)
	assert.Zero(t, registry.ConnectionCount())
	assert.True(t, a1Transport.Closed())
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), a1Transport.closeMsg)
}
