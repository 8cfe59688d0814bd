package postgres

import (
	"testing"
	"time"

	"beacon/internal/domain/entity"
	"beacon/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestNotificationMapping_RoundTrip(t *testing.T) {
	n := &entity.Notification{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Type:      entity.NotificationTypeWarning,
		Title:     "Streak at risk",
		Message:   "Solve one composition today",
		Category:  entity.CategorySystem,
		Metadata:  map[string]any{"streak": float64(6)},
		IsRead:    true,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, n, toNotificationDomain(fromNotificationDomain(n)))
}

func TestNotificationMapping_EmptyMetadataStaysNil(t *testing.T) {
	m := fromNotificationDomain(&entity.Notification{Metadata: map[string]any{}})
	assert.Nil(t, m.Metadata)

	n := toNotificationDomain(&model.NotificationModel{Metadata: datatypes.JSONMap{}})
	assert.Nil(t, n.Metadata)

	assert.Nil(t, toNotificationDomain(nil))
	assert.Nil(t, fromNotificationDomain(nil))
}

func TestToUserDomain_FiltersUnknownRoles(t *testing.T) {
	u := toUserDomain(&model.UserModel{
		ID:    uuid.New(),
		Email: "a@example.com",
		Roles: datatypes.JSONSlice[string]{"user", "superuser", "admin"},
	})

	assert.Equal(t, entity.Roles{entity.RoleUser, entity.RoleAdmin}, u.Roles)
}

func TestDeviceMapping(t *testing.T) {
	d := &entity.UserDevice{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		FCMToken: "tok",
		DeviceID: "pixel-8",
		Platform: entity.PlatformAndroid,
		IsActive: true,
	}

	assert.Equal(t, d, toDeviceDomain(fromDeviceDomain(d)))
}
