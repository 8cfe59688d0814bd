package impl

import (
	"context"
	"log/slog"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/entity"
	domainerrors "beacon/internal/domain/errors"
	"beacon/internal/domain/repository"
	"beacon/internal/domain/service"
	"beacon/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type deviceService struct {
	deviceRepo  repository.DeviceRepository
	pushService service.PushService
	logger      *slog.Logger
}

// NewDeviceService creates a new device service instance
func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	pushService service.PushService,
	logger *slog.Logger,
) usecase.DeviceUsecase {
	return &deviceService{
		deviceRepo:  deviceRepo,
		pushService: pushService,
		logger:      logger,
	}
}

// RegisterDevice stores the push target of one of the user's devices. Registering a known
// device again moves it to the new token and reactivates it.
func (s *deviceService) RegisterDevice(ctx context.Context, userID uuid.UUID, deviceInfo *usecase.DeviceInfo) (*entity.UserDevice, error) {
	if deviceInfo == nil || deviceInfo.FCMToken == "" || deviceInfo.DeviceID == "" || !deviceInfo.Platform.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("fcm_token, device_id and a valid platform are required")
	}

	device := &entity.UserDevice{
		ID:       uuid.New(),
		UserID:   userID,
		FCMToken: deviceInfo.FCMToken,
		DeviceID: deviceInfo.DeviceID,
		Platform: deviceInfo.Platform,
		IsActive: true,
	}

	if err := s.deviceRepo.Upsert(ctx, device); err != nil {
		return nil, errors.Wrap(err, "failed to register device")
	}

	return device, nil
}

// GetUserDevices lists the devices that still receive pushes
func (s *deviceService) GetUserDevices(ctx context.Context, userID uuid.UUID) ([]*entity.UserDevice, error) {
	devices, err := s.deviceRepo.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}

	return devices, nil
}

// DeactivateDevice removes a device owned by the user. A foreign device is reported as
// missing so foreign ids stay hidden.
func (s *deviceService) DeactivateDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	if err := s.deviceRepo.Remove(ctx, userID, deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return domainerrors.ErrDeviceNotFound
		}

		return errors.Wrap(err, "failed to remove device")
	}

	return nil
}

// PushToUser sends a push to every active device of the user
func (s *deviceService) PushToUser(ctx context.Context, userID uuid.UUID, msg *usecase.PushMessage) (int, error) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, s.logger)

	devices, err := s.deviceRepo.ListByUser(ctx, userID, true)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list devices")
	}
	if len(devices) == 0 {
		return 0, nil
	}

	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.FCMToken)
	}

	sent, failed, invalidTokens, err := s.pushService.SendBatchNotification(ctx, tokens, msg.Title, msg.Body, msg.Data)
	if err != nil {
		return sent, errors.Wrap(err, "failed to send push")
	}

	if len(invalidTokens) > 0 {
		deactivated, err := s.deviceRepo.DeactivateTokens(ctx, invalidTokens)
		if err != nil {
			logger.Warn("[Device] Failed to deactivate invalid tokens",
				slog.Int("count", len(invalidTokens)),
				slog.Any("error", err),
			)
		} else {
			logger.Debug("[Device] Deactivated devices", slog.Int64("count", deactivated))
		}
	}

	logger.Info("[Device] Push sent",
		slog.String("user_id", userID.String()),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Int("invalid_tokens", len(invalidTokens)),
	)

	return sent, nil
}
