package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationModel is the GORM-specific struct for the 'notifications' table.
type NotificationModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1"`
	Type      string            `gorm:"type:varchar(16);not null"`
	Title     string            `gorm:"type:varchar(255);not null"`
	Message   string            `gorm:"type:text;not null"`
	Category  string            `gorm:"type:varchar(32);not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	IsRead    bool              `gorm:"not null;default:false"`
	CreatedAt time.Time         `gorm:"index:idx_notifications_user_created,priority:2,sort:desc"`
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (NotificationModel) TableName() string {
	return "notifications"
}
