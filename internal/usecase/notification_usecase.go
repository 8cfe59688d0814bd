package usecase

import (
	"context"

	"beacon/internal/domain/entity"

	"github.com/google/uuid"
)

// ListFilter narrows a notification listing
type ListFilter struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// CreateNotificationInput carries a new notification addressed to one user
type CreateNotificationInput struct {
	UserID   uuid.UUID
	Type     entity.NotificationType
	Title    string
	Message  string
	Category entity.NotificationCategory
	Metadata map[string]any
}

// NotificationUsecase defines the notification use cases shared by the REST API and the realtime server.
// Every state change is also emitted to the user's open connections; emit failures never fail the call.
type NotificationUsecase interface {
	// List returns the user's notifications, newest first
	List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*entity.Notification, error)

	// Create persists a notification and pushes it to the owner
	Create(ctx context.Context, input *CreateNotificationInput) (*entity.Notification, error)

	// MarkAsRead flags one notification as read
	MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error

	// MarkAllAsRead flags every unread notification of the user and returns how many changed
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes one notification
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error

	// UnreadCount returns the number of unread notifications
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}
