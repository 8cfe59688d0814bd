package usecase

import (
	"context"

	"beacon/internal/domain/entity"

	"github.com/google/uuid"
)

// DeviceInfo represents device information for registration
type DeviceInfo struct {
	FCMToken string          `json:"fcm_token" validate:"required"`
	DeviceID string          `json:"device_id" validate:"required"`
	Platform entity.Platform `json:"platform" validate:"required,oneof=ios android web"`
}

// PushMessage is the content of an offline push
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// DeviceUsecase defines the interface for device management use cases
type DeviceUsecase interface {
	// RegisterDevice registers a new device or refreshes the token of an existing one
	RegisterDevice(ctx context.Context, userID uuid.UUID, deviceInfo *DeviceInfo) (*entity.UserDevice, error)

	// GetUserDevices retrieves all active devices for a user
	GetUserDevices(ctx context.Context, userID uuid.UUID) ([]*entity.UserDevice, error)

	// DeactivateDevice removes a device owned by the user
	DeactivateDevice(ctx context.Context, userID, deviceID uuid.UUID) error

	// PushToUser sends a push to every active device of the user and returns how many succeeded.
	// Tokens reported invalid are deactivated.
	PushToUser(ctx context.Context, userID uuid.UUID, msg *PushMessage) (int, error)
}
