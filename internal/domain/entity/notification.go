// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType is the severity shown to the user.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// IsValid checks if the NotificationType is a known value.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeSuccess, NotificationTypeWarning, NotificationTypeError:
		return true
	default:
		return false
	}
}

// NotificationCategory groups notifications by the part of the product that raised them.
type NotificationCategory string

const (
	CategorySystem      NotificationCategory = "system"
	CategoryUser        NotificationCategory = "user"
	CategoryComposition NotificationCategory = "composition"
)

// IsValid checks if the NotificationCategory is a known value.
func (c NotificationCategory) IsValid() bool {
	switch c {
	case CategorySystem, CategoryUser, CategoryComposition:
		return true
	default:
		return false
	}
}

// Notification is a persisted message addressed to a single user.
// Its JSON encoding is the record pushed to clients, so the owner is never serialized.
type Notification struct {
	ID        uuid.UUID            `json:"id"`                 // The Global Unique Identifier (GUID) for the notification.
	UserID    uuid.UUID            `json:"-"`                  // The ID of the user who owns this notification.
	Type      NotificationType     `json:"type"`               // Severity: info, success, warning or error.
	Title     string               `json:"title"`              // Short headline.
	Message   string               `json:"message"`            // Body text.
	Category  NotificationCategory `json:"category"`           // Source area: system, user or composition.
	Metadata  map[string]any       `json:"metadata,omitempty"` // Optional free-form attributes (links, ids).
	IsRead    bool                 `json:"isRead"`             // Whether the owner has read it.
	CreatedAt time.Time            `json:"timestamp"`          // Timestamp of when the notification was created.
}
