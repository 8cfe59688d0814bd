// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"beacon/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrDeviceNotFound is returned when a device does not exist or belongs to another user.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository stores the FCM targets used when a user has no open connection.
// Every method that takes a userID only ever touches rows owned by that user.
type DeviceRepository interface {
	// Upsert stores the device keyed by (UserID, DeviceID). A known device takes the new
	// token and platform and is reactivated. device is refreshed from the stored row.
	Upsert(ctx context.Context, device *entity.UserDevice) error

	// ListByUser lists a user's devices, newest first. activeOnly skips devices whose
	// token was rejected by the push provider.
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*entity.UserDevice, error)

	// Remove soft-deletes one device of the user.
	Remove(ctx context.Context, userID, deviceID uuid.UUID) error

	// DeactivateTokens stops pushing to every device holding one of the tokens.
	DeactivateTokens(ctx context.Context, tokens []string) (int64, error)
}
