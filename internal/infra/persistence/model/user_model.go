package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserModel mirrors the 'users' table shared with the auth provider.
type UserModel struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Email     string                      `gorm:"type:varchar(255);unique;not null"`
	Name      string                      `gorm:"type:varchar(100)"`
	Roles     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
