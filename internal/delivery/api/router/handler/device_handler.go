package handler

import (
	"log/slog"
	"net/http"

	"beacon/internal/delivery/response"
	"beacon/internal/domain/entity"
	"beacon/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type DeviceHandlerParams struct {
	fx.In

	DeviceUC usecase.DeviceUsecase
	Logger   *slog.Logger
}

// DeviceHandler manages the FCM registrations used for the offline push fallback.
type DeviceHandler struct {
	deviceUC usecase.DeviceUsecase
	logger   *slog.Logger
}

func NewDeviceHandler(params DeviceHandlerParams) *DeviceHandler {
	return &DeviceHandler{deviceUC: params.DeviceUC, logger: params.Logger}
}

type RegisterDeviceRequest struct {
	FCMToken string `json:"fcm_token" validate:"required"`
	DeviceID string `json:"device_id" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// RegisterDevice handles POST /api/v1/devices. Re-registering a device id refreshes its token.
func (h *DeviceHandler) RegisterDevice(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		var req RegisterDeviceRequest
		if err := c.Bind(&req); err != nil {
			return response.BindingError(c, "INVALID_INPUT", "Invalid device input")
		}
		if err := c.Validate(&req); err != nil {
			return response.HandleAppError(c, err)
		}

		device, err := h.deviceUC.RegisterDevice(c.Request().Context(), userID, &usecase.DeviceInfo{
			FCMToken: req.FCMToken,
			DeviceID: req.DeviceID,
			Platform: entity.Platform(req.Platform),
		})
		if err != nil {
			return response.HandleAppError(c, err)
		}

		return response.Success(c, http.StatusCreated, device)
	})
}

// GetUserDevices handles GET /api/v1/devices.
func (h *DeviceHandler) GetUserDevices(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		devices, err := h.deviceUC.GetUserDevices(c.Request().Context(), userID)
		if err != nil {
			return response.HandleAppError(c, err)
		}
		if devices == nil {
			devices = []*entity.UserDevice{}
		}

		return response.Success(c, http.StatusOK, devices)
	})
}

// DeactivateDevice handles DELETE /api/v1/devices/:id.
func (h *DeviceHandler) DeactivateDevice(c echo.Context) error {
	return asCaller(c, func(userID uuid.UUID) error {
		deviceID, ok := pathUUID(c)
		if !ok {
			return response.BadRequest(c, "INVALID_ID", "Invalid device ID")
		}

		if err := h.deviceUC.DeactivateDevice(c.Request().Context(), userID, deviceID); err != nil {
			return response.HandleAppError(c, err)
		}

		return response.OK(c, "Device deactivated")
	})
}
