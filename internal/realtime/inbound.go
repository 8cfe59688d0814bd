package realtime

import (
	"context"
	"log/slog"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/usecase"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

var errInvalidNotificationID = errors.New("invalid notificationId")

// InboundParams holds dependencies for the InboundHandler, injected by Fx.
type InboundParams struct {
	fx.In

	Logger        *slog.Logger
	Notifications usecase.NotificationUsecase
}

// InboundHandler applies control messages sent by clients over their connection.
// It never fails the connection: bad frames and failed mutations are logged and dropped.
type InboundHandler struct {
	notifications usecase.NotificationUsecase
	logger        *slog.Logger
}

// NewInboundHandler creates an InboundHandler.
func NewInboundHandler(params InboundParams) *InboundHandler {
	return &InboundHandler{
		notifications: params.Notifications,
		logger:        params.Logger,
	}
}

// Handle decodes frame and applies it on behalf of conn's user.
func (h *InboundHandler) Handle(ctx context.Context, conn *Connection, frame []byte) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger).With(
		slog.String("user_id", conn.UserID().String()),
		slog.String("connection_id", conn.ID()),
	)

	if !conn.Allow() {
		logger.Warn("[Inbound] Rate limit exceeded, message dropped")

		return
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		logger.Warn("[Inbound] Malformed message ignored", slog.Any("error", err))

		return
	}

	if !env.Type.IsClientCommand() {
		logger.Warn("[Inbound] Unsupported message type ignored", slog.String("type", string(env.Type)))

		return
	}

	ctx = WithOriginConnection(ctx, conn.ID())
	if err := h.apply(ctx, conn.UserID(), env); err != nil {
		logger.Warn("[Inbound] Failed to apply message",
			slog.String("type", string(env.Type)),
			slog.Any("error", err),
		)

		return
	}

	logger.Debug("[Inbound] Message applied", slog.String("type", string(env.Type)))
}

func (h *InboundHandler) apply(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeMarkRead:
		notificationID, err := notificationIDOf(env)
		if err != nil {
			return err
		}

		return h.notifications.MarkAsRead(ctx, userID, notificationID)
	case protocol.TypeMarkAllRead:
		_, err := h.notifications.MarkAllAsRead(ctx, userID)

		return err
	case protocol.TypeDelete:
		notificationID, err := notificationIDOf(env)
		if err != nil {
			return err
		}

		return h.notifications.Delete(ctx, userID, notificationID)
	default:
		return nil
	}
}

func notificationIDOf(env protocol.Envelope) (uuid.UUID, error) {
	var ref protocol.NotificationRef
	if err := env.DecodeData(&ref); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(ref.NotificationID)
	if err != nil {
		return uuid.Nil, errors.Wrap(errInvalidNotificationID, ref.NotificationID)
	}

	return id, nil
}
