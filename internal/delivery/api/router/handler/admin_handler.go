package handler

import (
	"log/slog"
	"net/http"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/delivery/response"
	"beacon/internal/domain/entity"
	"beacon/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AdminHandlerParams holds dependencies for AdminHandler, injected by Fx.
type AdminHandlerParams struct {
	fx.In

	NotificationUC usecase.NotificationUsecase
	Logger         *slog.Logger
}

// AdminHandler lets operators address notifications to any user.
type AdminHandler struct {
	uc     usecase.NotificationUsecase
	logger *slog.Logger
}

// NewAdminHandler is the constructor for AdminHandler
func NewAdminHandler(params AdminHandlerParams) *AdminHandler {
	return &AdminHandler{
		uc:     params.NotificationUC,
		logger: params.Logger,
	}
}

// CreateNotificationRequest represents the request body for creating a notification
type CreateNotificationRequest struct {
	UserID   string         `json:"userId" validate:"required,uuid"`
	Type     string         `json:"type" validate:"omitempty,oneof=info success warning error"`
	Title    string         `json:"title" validate:"required,max=200"`
	Message  string         `json:"message" validate:"max=2000"`
	Category string         `json:"category" validate:"omitempty,oneof=system user composition"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateNotification handles POST /api/v1/admin/notifications
func (h *AdminHandler) CreateNotification(c echo.Context) error {
	var req CreateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid notification input")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return response.BadRequest(c, "INVALID_USER_ID", "Invalid userId")
	}

	ctx := c.Request().Context()
	notification, err := h.uc.Create(ctx, &usecase.CreateNotificationInput{
		UserID:   userID,
		Type:     entity.NotificationType(req.Type),
		Title:    req.Title,
		Message:  req.Message,
		Category: entity.NotificationCategory(req.Category),
		Metadata: req.Metadata,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	deliverycontext.GetLoggerOrDefault(ctx, h.logger).Info("[Admin] Notification created",
		slog.String("notification_id", notification.ID.String()),
		slog.String("user_id", userID.String()),
	)

	return response.Success(c, http.StatusCreated, notification)
}
