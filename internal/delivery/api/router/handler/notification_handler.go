package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"beacon/internal/delivery/response"
	"beacon/internal/domain/entity"
	"beacon/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// NotificationHandlerParams holds dependencies for NotificationHandler, injected by Fx.
type NotificationHandlerParams struct {
	fx.In

	NotificationUC usecase.NotificationUsecase
	Logger         *slog.Logger
}

// NotificationHandler serves the caller's own inbox.
type NotificationHandler struct {
	uc     usecase.NotificationUsecase
	logger *slog.Logger
}

// NewNotificationHandler is the constructor for NotificationHandler
func NewNotificationHandler(params NotificationHandlerParams) *NotificationHandler {
	return &NotificationHandler{
		uc:     params.NotificationUC,
		logger: params.Logger,
	}
}

// UnreadCountResponse is the body of GET /api/v1/notifications/unread-count
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// MarkAllReadResponse is the body of POST /api/v1/notifications/read-all
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListNotifications handles GET /api/v1/notifications?limit&offset&unread
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		filter, err := parseListFilter(c)
		if err != nil {
			return response.BadRequest(c, "INVALID_QUERY", err.Error())
		}

		notifications, err := h.uc.List(c.Request().Context(), userID, filter)
		if err != nil {
			return response.HandleAppError(c, err)
		}

		if notifications == nil {
			notifications = []*entity.Notification{}
		}

		return response.Success(c, http.StatusOK, notifications)
	})
}

func parseListFilter(c echo.Context) (usecase.ListFilter, error) {
	var filter usecase.ListFilter

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("limit must be an integer")
		}
		filter.Limit = limit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("offset must be an integer")
		}
		filter.Offset = offset
	}

	if raw := c.QueryParam("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("unread must be a boolean")
		}
		filter.UnreadOnly = unread
	}

	return filter, nil
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		count, err := h.uc.UnreadCount(c.Request().Context(), userID)
		if err != nil {
			return response.HandleAppError(c, err)
		}

		return response.Success(c, http.StatusOK, UnreadCountResponse{Count: count})
	})
}

// MarkAsRead handles PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		notificationID, ok := pathUUID(c)
		if !ok {
			return response.BadRequest(c, "INVALID_ID", "Invalid notification ID")
		}

		if err := h.uc.MarkAsRead(c.Request().Context(), userID, notificationID); err != nil {
			return response.HandleAppError(c, err)
		}

		return response.OK(c, "Notification marked as read")
	})
}

// MarkAllAsRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		updated, err := h.uc.MarkAllAsRead(c.Request().Context(), userID)
		if err != nil {
			return response.HandleAppError(c, err)
		}

		return response.Success(c, http.StatusOK, MarkAllReadResponse{Updated: updated})
	})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		notificationID, ok := pathUUID(c)
		if !ok {
			return response.BadRequest(c, "INVALID_ID", "Invalid notification ID")
		}

		if err := h.uc.Delete(c.Request().Context(), userID, notificationID); err != nil {
			return response.HandleAppError(c, err)
		}

		return response.OK(c, "Notification deleted")
	})
}
