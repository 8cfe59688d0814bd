// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"errors"

	"beacon/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrNotificationNotFound is returned when a notification does not exist or belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationFilter narrows a per-user listing.
type NotificationFilter struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// NotificationRepository defines the interface for notification-related database operations.
// Every method that takes a userID only ever touches rows owned by that user.
type NotificationRepository interface {
	// Create persists a new notification. ID and CreatedAt are filled when zero.
	Create(ctx context.Context, notification *entity.Notification) error

	// FindByUser lists a user's notifications, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]*entity.Notification, error)

	// MarkRead sets the read flag of one notification.
	MarkRead(ctx context.Context, userID, id uuid.UUID) error

	// MarkAllRead sets the read flag on every unread notification of the user and returns how many changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes one notification.
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// CountUnread returns the number of unread notifications of the user.
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}
