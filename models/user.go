package models

import (
	"time"

	"gorm.io/gorm"
)

// User mirrors the identity owned by the account service, plus the
// progression fields this service maintains. Experience and coins are only
// ever incremented here, never decremented.
type User struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username  string  `gorm:"uniqueIndex;not null" json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	Experience int64 `json:"experience" gorm:"default:0"`
	Coins      int64 `json:"coins" gorm:"default:0"`

	// Derived from Experience by the experience curve, not stored.
	Level int `json:"level,omitempty" gorm:"-"`

	// Cursor for the account-service sync worker. Reward updates bump
	// UpdatedAt, so incremental sync tracks its own timestamp.
	SyncedAt *time.Time `json:"-" gorm:"index"`

	Timestamps
}

// UserDevice stores push tokens registered by the mobile client. The push
// transport fans out one send per active token.
type UserDevice struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"index;not null;uniqueIndex:idx_user_devices_user_token" json:"user_id"`
	DeviceToken string    `gorm:"not null;uniqueIndex:idx_user_devices_user_token" json:"device_token"`
	Platform    string    `gorm:"type:varchar(16)" json:"platform"` // ios, android
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
