package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"beacon/config"
	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/realtime"
	"beacon/internal/usecase"
	"beacon/pkg/protocol"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const closeWriteTimeout = time.Second

// WSHandlerParams holds dependencies for WSHandler, injected by Fx.
type WSHandlerParams struct {
	fx.In

	Config        *config.Config
	Logger        *slog.Logger
	Registry      *realtime.Registry
	Authenticator *realtime.Authenticator
	Inbound       *realtime.InboundHandler
	Notifications usecase.NotificationUsecase
}

// WSHandler upgrades authenticated requests and runs the connection until it closes.
type WSHandler struct {
	upgrader      websocket.Upgrader
	readLimit     int64
	connOpts      realtime.ConnectionOptions
	registry      *realtime.Registry
	auth          *realtime.Authenticator
	inbound       *realtime.InboundHandler
	notifications usecase.NotificationUsecase
	logger        *slog.Logger
}

// NewWSHandler is the constructor for WSHandler.
func NewWSHandler(params WSHandlerParams) *WSHandler {
	rt := params.Config.Realtime

	return &WSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(rt.AllowedOrigins),
		},
		readLimit: rt.ReadLimit,
		connOpts: realtime.ConnectionOptions{
			WriteTimeout: rt.WriteTimeout,
			InboundRate:  rt.InboundRate,
			InboundBurst: rt.InboundBurst,
		},
		registry:      params.Registry,
		auth:          params.Authenticator,
		inbound:       params.Inbound,
		notifications: params.Notifications,
		logger:        params.Logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}

		return slices.Contains(allowed, origin)
	}
}

// Handle serves one WebSocket connection.
func (h *WSHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	user, authErr := h.auth.Authenticate(ctx, realtime.TokenFromRequest(c.Request()))

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.Warn("[WebSocket] Upgrade failed", slog.Any("error", err))

		return nil
	}

	if authErr != nil {
		code, reason := realtime.CloseCodeFor(authErr)
		logger.Warn("[WebSocket] Handshake rejected",
			slog.Int("close_code", code),
			slog.Any("error", authErr),
		)
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWriteTimeout))
		_ = ws.Close()

		return nil
	}

	ws.SetReadLimit(h.readLimit)
	conn := realtime.NewConnection(user.ID, ws, h.connOpts)
	ws.SetPongHandler(func(string) error {
		conn.Pong()

		return nil
	})

	logger = logger.With(
		slog.String("user_id", user.ID.String()),
		slog.String("connection_id", conn.ID()),
	)
	ctx = deliverycontext.WithLogger(ctx, logger)

	h.registry.Add(conn)
	defer func() {
		h.registry.Remove(conn)
		conn.Terminate()
		logger.Info("[WebSocket] Connection closed", slog.Duration("duration", time.Since(conn.OpenedAt())))
	}()

	logger.Info("[WebSocket] Connection opened")
	h.greet(ctx, conn)
	h.readLoop(ctx, ws, conn)

	return nil
}

// greet sends the unread count followed by the connected acknowledgement.
func (h *WSHandler) greet(ctx context.Context, conn *realtime.Connection) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	count, err := h.notifications.UnreadCount(ctx, conn.UserID())
	if err != nil {
		logger.Warn("[WebSocket] Failed to load unread count", slog.Any("error", err))
	} else if err := conn.SendEnvelope(protocol.Unread(count)); err != nil {
		logger.Warn("[WebSocket] Failed to send unread count", slog.Any("error", err))
	}

	if err := conn.SendEnvelope(protocol.Connected()); err != nil {
		logger.Warn("[WebSocket] Failed to send connected", slog.Any("error", err))
	}
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *realtime.Connection) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Warn("[WebSocket] Read failed", slog.Any("error", err))
			}

			return
		}

		h.inbound.Handle(ctx, conn, frame)
	}
}
