package handler

import (
	"log/slog"
	"net/http"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/delivery/response"
	"beacon/internal/realtime"
	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// BridgeHandlerParams holds dependencies for BridgeHandler, injected by Fx.
type BridgeHandlerParams struct {
	fx.In

	Logger     *slog.Logger
	Dispatcher *realtime.Dispatcher
}

// BridgeHandler receives envelopes from server-side emitters over HTTP.
type BridgeHandler struct {
	dispatcher *realtime.Dispatcher
	logger     *slog.Logger
}

// NewBridgeHandler is the constructor for BridgeHandler.
func NewBridgeHandler(params BridgeHandlerParams) *BridgeHandler {
	return &BridgeHandler{
		dispatcher: params.Dispatcher,
		logger:     params.Logger,
	}
}

// EmitNotification handles POST /emit-notification.
// Success only means the envelope was handed to the registry, not that the user was online.
func (h *BridgeHandler) EmitNotification(c echo.Context) error {
	var req protocol.EmitNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid emit-notification body")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return response.BadRequest(c, "INVALID_USER_ID", "Invalid userId")
	}

	var notification protocol.Notification
	if err := sonic.Unmarshal(req.Notification, &notification); err != nil || notification.ID == "" {
		return response.BadRequest(c, "INVALID_NOTIFICATION", "notification must be an object with an id")
	}

	delivered := h.dispatcher.Deliver(c.Request().Context(), userID, protocol.Envelope{
		Type: protocol.TypeNotification,
		Data: req.Notification,
	})

	deliverycontext.GetLoggerOrDefault(c.Request().Context(), h.logger).Debug("[Bridge] Notification emitted",
		slog.String("user_id", userID.String()),
		slog.String("notification_id", notification.ID),
		slog.Int("delivered", delivered),
	)

	return c.JSON(http.StatusOK, protocol.EmitResponse{Success: true, Delivered: &delivered})
}

// Emit handles POST /emit for any server-to-client envelope type.
func (h *BridgeHandler) Emit(c echo.Context) error {
	var req protocol.EmitRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid emit body")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	if !req.Type.IsKnown() {
		return response.BadRequest(c, "UNKNOWN_TYPE", "Unknown envelope type: "+string(req.Type))
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return response.BadRequest(c, "INVALID_USER_ID", "Invalid userId")
	}

	delivered := h.dispatcher.Deliver(c.Request().Context(), userID, req.Envelope())

	return c.JSON(http.StatusOK, protocol.EmitResponse{Success: true, Delivered: &delivered})
}
