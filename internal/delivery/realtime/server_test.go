package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"beacon/config"
	"beacon/internal/delivery/realtime/handler"
	"beacon/internal/domain/constants"
	"beacon/internal/domain/entity"
	"beacon/internal/domain/service"
	mockRepo "beacon/internal/mocks/repository"
	mockSvc "beacon/internal/mocks/service"
	mockUC "beacon/internal/mocks/usecase"
	"beacon/internal/realtime"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	goodToken    = "good-token"
	bridgeSecret = "bridge-secret"
)

type serverFixtures struct {
	server        *httptest.Server
	registry      *realtime.Registry
	dispatcher    *realtime.Dispatcher
	notifications *mockUC.MockNotificationUsecase
	tokenSvc      *mockSvc.MockTokenService
	userRepo      *mockRepo.MockUserRepository
	user          *entity.User
}

func createTestServer(t *testing.T, configure ...func(cfg *config.Config)) serverFixtures {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.HTTP.MaxRequestBodySize = "100KB"
	cfg.Realtime.Path = "/ws"
	cfg.Realtime.WriteTimeout = time.Second
	cfg.Realtime.ReadLimit = 4096
	cfg.Realtime.InboundRate = 100
	cfg.Realtime.InboundBurst = 100
	cfg.Realtime.UserCacheTTL = time.Minute
	cfg.Bridge = &config.BridgeConfig{Provider: constants.BridgeProviderHTTP, SharedSecret: bridgeSecret}
	for _, fn := range configure {
		fn(cfg)
	}

	notifications := mockUC.NewMockNotificationUsecase(t)
	tokenSvc := mockSvc.NewMockTokenService(t)
	userRepo := mockRepo.NewMockUserRepository(t)

	registry := realtime.NewRegistry(logger)
	dispatcher := realtime.NewDispatcher(realtime.DispatcherParams{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
	})
	auth := realtime.NewAuthenticator(realtime.AuthenticatorParams{
		Config:   cfg,
		Logger:   logger,
		TokenSvc: tokenSvc,
		UserRepo: userRepo,
	})
	inbound := realtime.NewInboundHandler(realtime.InboundParams{
		Logger:        logger,
		Notifications: notifications,
	})

	e := NewEcho(ServerParams{
		Cfg:      cfg,
		Logger:   logger,
		Registry: registry,
		WSHandler: handler.NewWSHandler(handler.WSHandlerParams{
			Config:        cfg,
			Logger:        logger,
			Registry:      registry,
			Authenticator: auth,
			Inbound:       inbound,
			Notifications: notifications,
		}),
		BridgeHandler: handler.NewBridgeHandler(handler.BridgeHandlerParams{Logger: logger, Dispatcher: dispatcher}),
		PushHandler: handler.NewPushHandler(handler.PushHandlerParams{
			Config:     cfg,
			Logger:     logger,
			Dispatcher: dispatcher,
		}),
		StatsHandler: handler.NewStatsHandler(registry),
	})

	server := httptest.NewServer(e)
	t.Cleanup(func() {
		registry.CloseAll(websocket.CloseGoingAway, "test done")
		server.Close()
	})

	return serverFixtures{
		server:        server,
		registry:      registry,
		dispatcher:    dispatcher,
		notifications: notifications,
		tokenSvc:      tokenSvc,
		userRepo:      userRepo,
		user:          &entity.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"},
	}
}

func (fx serverFixtures) expectLogin(unread int64) {
	fx.tokenSvc.EXPECT().ValidateToken(goodToken).
		Return(&service.Claims{UserID: fx.user.ID, Type: service.TokenTypeAccess}, nil)
	fx.userRepo.EXPECT().FindByID(mock.Anything, fx.user.ID).Return(fx.user, nil).Maybe()
	fx.notifications.EXPECT().UnreadCount(mock.Anything, fx.user.ID).Return(unread, nil)
}

func (fx serverFixtures) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(fx.server.URL, "http") + "/ws"
	if token != "" {
		url += "?" + constants.TokenQueryParam + "=" + token
	}

	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) protocol.Envelope {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	env, err := protocol.Decode(frame)
	require.NoError(t, err)

	return env
}

// dialReady connects and consumes the handshake frames.
func (fx serverFixtures) dialReady(t *testing.T) *websocket.Conn {
	t.Helper()

	ws := fx.dial(t, goodToken)
	assert.Equal(t, protocol.TypeUnreadCount, readEnvelope(t, ws).Type)
	assert.Equal(t, protocol.TypeConnected, readEnvelope(t, ws).Type)

	return ws
}

func (fx serverFixtures) waitForConnections(t *testing.T, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(fx.registry.Connections(fx.user.ID)) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func (fx serverFixtures) postBridge(t *testing.T, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, fx.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.BridgeSecretHeader, bridgeSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestServer_HandshakeSendsUnreadCountThenConnected(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(3)

	ws := fx.dial(t, goodToken)

	first := readEnvelope(t, ws)
	require.Equal(t, protocol.TypeUnreadCount, first.Type)
	var unread protocol.UnreadCount
	require.NoError(t, first.DecodeData(&unread))
	assert.Equal(t, int64(3), unread.Count)

	assert.Equal(t, protocol.TypeConnected, readEnvelope(t, ws).Type)
	fx.waitForConnections(t, 1)
}

func TestServer_HandshakeRejections(t *testing.T) {
	tests := []struct {
		name  string
		token string
		setup func(fx serverFixtures)
	}{
		{
			name:  "missing token",
			token: "",
		},
		{
			name:  "invalid token",
			token: "forged",
			setup: func(fx serverFixtures) {
				fx.tokenSvc.EXPECT().ValidateToken("forged").Return(nil, errors.New("signature is invalid"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := createTestServer(t)
			if tt.setup != nil {
				tt.setup(fx)
			}

			ws := fx.dial(t, tt.token)

			require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := ws.ReadMessage()

			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
			assert.Zero(t, fx.registry.ConnectionCount())
		})
	}
}

func TestServer_EmitNotificationReachesConnectedClient(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(0)

	ws := fx.dialReady(t)
	fx.waitForConnections(t, 1)

	body := `{"userId":"` + fx.user.ID.String() + `","notification":{"id":"n-1","type":"info","title":"Hello","message":"World","isRead":false,"category":"system"}}`
	resp := fx.postBridge(t, "/emit-notification", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack protocol.EmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Success)
	require.NotNil(t, ack.Delivered)
	assert.Equal(t, 1, *ack.Delivered)

	env := readEnvelope(t, ws)
	require.Equal(t, protocol.TypeNotification, env.Type)
	var notification protocol.Notification
	require.NoError(t, env.DecodeData(&notification))
	assert.Equal(t, "n-1", notification.ID)
	assert.Equal(t, "Hello", notification.Title)
}

func TestServer_EmitNotificationForOfflineUserSucceeds(t *testing.T) {
	fx := createTestServer(t)

	body := `{"userId":"` + uuid.NewString() + `","notification":{"id":"n-2","title":"Nobody home"}}`
	resp := fx.postBridge(t, "/emit-notification", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack protocol.EmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Success)
	require.NotNil(t, ack.Delivered)
	assert.Zero(t, *ack.Delivered)
}

func TestServer_BridgeRequiresSecret(t *testing.T) {
	fx := createTestServer(t)

	resp, err := http.Post(fx.server.URL+"/emit", "application/json",
		strings.NewReader(`{"userId":"`+uuid.NewString()+`","type":"mark_all_read"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_MarkReadFansOutToOtherTabs(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(1)

	notificationID := uuid.New()
	emitter := realtime.NewLocalEmitter(fx.dispatcher)

	// Stand in for the usecase: emit the mutation and the fresh count through the dispatcher.
	fx.notifications.EXPECT().
		MarkAsRead(mock.Anything, fx.user.ID, notificationID).
		RunAndReturn(func(ctx context.Context, userID, id uuid.UUID) error {
			_ = emitter.Emit(ctx, userID, protocol.MarkRead(id.String()))
			_ = emitter.Emit(ctx, userID, protocol.Unread(0))

			return nil
		})

	origin := fx.dialReady(t)
	other := fx.dialReady(t)
	fx.waitForConnections(t, 2)

	frame, err := protocol.Encode(protocol.MarkRead(notificationID.String()))
	require.NoError(t, err)
	require.NoError(t, origin.WriteMessage(websocket.TextMessage, frame))

	// The other tab sees the mutation and the count.
	env := readEnvelope(t, other)
	require.Equal(t, protocol.TypeMarkRead, env.Type)
	var ref protocol.NotificationRef
	require.NoError(t, env.DecodeData(&ref))
	assert.Equal(t, notificationID.String(), ref.NotificationID)
	assert.Equal(t, protocol.TypeUnreadCount, readEnvelope(t, other).Type)

	// The origin tab already applied the change, so it only gets the count.
	assert.Equal(t, protocol.TypeUnreadCount, readEnvelope(t, origin).Type)
}

func TestServer_StatsReportsConnections(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(0)

	fx.dialReady(t)
	fx.dialReady(t)
	fx.waitForConnections(t, 2)

	resp, err := http.Get(fx.server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats handler.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.Users)
}

func pubSubBody(payload string) string {
	data := base64.StdEncoding.EncodeToString([]byte(payload))

	return `{"message":{"data":"` + data + `","messageId":"m-1"},"subscription":"projects/p/subscriptions/s"}`
}

func postPush(t *testing.T, url, body string, header http.Header) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/push", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for key := range header {
		req.Header.Set(key, header.Get(key))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode
}

func TestServer_PushRequiresBridgeSecret(t *testing.T) {
	fx := createTestServer(t)
	fx.expectLogin(0)

	ws := fx.dialReady(t)
	fx.waitForConnections(t, 1)

	forged := pubSubBody(`{"userId":"` + fx.user.ID.String() + `","type":"notification","data":{"id":"forged","title":"forged"}}`)
	assert.Equal(t, http.StatusUnauthorized, postPush(t, fx.server.URL, forged, nil))

	genuine := pubSubBody(`{"userId":"` + fx.user.ID.String() + `","type":"notification","data":{"id":"n-3","title":"Genuine"}}`)
	assert.Equal(t, http.StatusOK, postPush(t, fx.server.URL, genuine, http.Header{constants.BridgeSecretHeader: {bridgeSecret}}))

	// The rejected push never reached the socket; the first frame is the accepted one.
	env := readEnvelope(t, ws)
	require.Equal(t, protocol.TypeNotification, env.Type)
	var notification protocol.Notification
	require.NoError(t, env.DecodeData(&notification))
	assert.Equal(t, "n-3", notification.ID)
}

func TestServer_GooglePushRequiresOIDCToken(t *testing.T) {
	fx := createTestServer(t, func(cfg *config.Config) {
		cfg.Bridge.Provider = constants.BridgeProviderGoogle
		cfg.Bridge.Google = &config.GooglePubSubConfig{ProjectID: "p", TopicID: "t"}
	})

	body := pubSubBody(`{"userId":"` + uuid.NewString() + `","type":"mark_all_read"}`)

	assert.Equal(t, http.StatusUnauthorized, postPush(t, fx.server.URL, body, nil))
	// The bridge secret is not a substitute for the push subscription's token.
	assert.Equal(t, http.StatusUnauthorized, postPush(t, fx.server.URL, body, http.Header{constants.BridgeSecretHeader: {bridgeSecret}}))
}
