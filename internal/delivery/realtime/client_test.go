package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"beacon/internal/realtime"
	"beacon/pkg/client"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// emptyInbox answers the REST calls a Synchronizer makes with an empty inbox.
type emptyInbox struct {
	mu         sync.Mutex
	markedRead []string
}

func (a *emptyInbox) List(context.Context, client.ListOptions) ([]protocol.Notification, error) {
	return nil, nil
}

func (a *emptyInbox) UnreadCount(context.Context) (int64, error) { return 0, nil }

func (a *emptyInbox) MarkRead(_ context.Context, notificationID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markedRead = append(a.markedRead, notificationID)

	return nil
}

func (a *emptyInbox) MarkAllRead(context.Context) (int64, error) { return 0, nil }

func (a *emptyInbox) Delete(context.Context, string) error { return nil }

func (a *emptyInbox) MarkedRead() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.markedRead...)
}

func TestServer_SynchronizerFollowsBridgeEmits(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(0)

	notificationID := uuid.New()
	emitter := realtime.NewLocalEmitter(fx.dispatcher)
	fx.notifications.EXPECT().
		MarkAsRead(mock.Anything, fx.user.ID, notificationID).
		RunAndReturn(func(ctx context.Context, userID, id uuid.UUID) error {
			_ = emitter.Emit(ctx, userID, protocol.MarkRead(id.String()))
			_ = emitter.Emit(ctx, userID, protocol.Unread(0))

			return nil
		})

	socket := client.NewSocket(client.SocketOptions{
		URL:       "ws" + strings.TrimPrefix(fx.server.URL, "http") + "/ws",
		Token:     goodToken,
		BaseDelay: 10 * time.Millisecond,
	})
	t.Cleanup(socket.Disconnect)

	api := &emptyInbox{}
	syncer := client.NewSynchronizer(socket, api, client.SynchronizerOptions{
		ConnectDelay: time.Millisecond,
		PollInterval: time.Hour,
	})
	t.Cleanup(syncer.Close)

	require.NoError(t, syncer.Start(context.Background()))
	require.Eventually(t, func() bool { return socket.State() == client.StateOpen }, 2*time.Second, 5*time.Millisecond)
	fx.waitForConnections(t, 1)

	body := `{"userId":"` + fx.user.ID.String() + `","notification":{"id":"` + notificationID.String() +
		`","type":"info","title":"Deploy finished","message":"api v2 is live","isRead":false,"category":"system"}}`
	resp := fx.postBridge(t, "/emit-notification", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return syncer.UnreadCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	notifications := syncer.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, notificationID.String(), notifications[0].ID)
	assert.Equal(t, "Deploy finished", notifications[0].Title)
	assert.False(t, notifications[0].IsRead)

	// Marking read travels over the socket, and the server's fresh count settles the state.
	require.NoError(t, syncer.MarkAsRead(context.Background(), notificationID.String()))
	require.Eventually(t, func() bool {
		snapshot := syncer.Snapshot()

		return snapshot.UnreadCount == 0 && len(snapshot.Notifications) == 1 && snapshot.Notifications[0].IsRead
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, api.MarkedRead())
	assert.Equal(t, client.StateOpen, syncer.Snapshot().State)
}
