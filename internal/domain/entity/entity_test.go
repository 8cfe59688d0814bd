package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationJSONShape(t *testing.T) {
	n := Notification{
		ID:        uuid.MustParse("7d7cf5a4-34c5-4c43-9b5c-3d1b7d6a0c11"),
		UserID:    uuid.New(),
		Type:      NotificationTypeSuccess,
		Title:     "Composition completed",
		Message:   "You earned 10 points",
		Category:  CategoryComposition,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "7d7cf5a4-34c5-4c43-9b5c-3d1b7d6a0c11", fields["id"])
	assert.Equal(t, "success", fields["type"])
	assert.Equal(t, "composition", fields["category"])
	assert.Equal(t, false, fields["isRead"])
	assert.Equal(t, "2026-01-02T03:04:05Z", fields["timestamp"])
	assert.NotContains(t, fields, "metadata")
	assert.NotContains(t, fields, "UserID")
	assert.NotContains(t, fields, "userId")
}

func TestEnumsValidity(t *testing.T) {
	assert.True(t, NotificationTypeWarning.IsValid())
	assert.False(t, NotificationType("fatal").IsValid())
	assert.True(t, CategorySystem.IsValid())
	assert.False(t, NotificationCategory("billing").IsValid())
	assert.True(t, PlatformWeb.IsValid())
	assert.False(t, Platform("symbian").IsValid())
}

func TestRolesFromStrings(t *testing.T) {
	roles := RolesFromStrings([]string{"user", "superuser", "admin"})

	assert.Equal(t, Roles{RoleUser, RoleAdmin}, roles)
	assert.True(t, roles.Contains(RoleAdmin))
	assert.True(t, Roles{RoleUser}.HasAny(RoleAdmin, RoleUser))
	assert.False(t, Roles{RoleUser}.HasAny(RoleAdmin))
	assert.False(t, Roles{}.HasAny())
	assert.Equal(t, []string{"user", "admin"}, roles.ToStrings())
}
