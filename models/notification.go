package models

import (
	"time"
)

// Notification is the stored copy of a push dispatch, one row per
// recipient. Delivery itself is best-effort; the row is the record the
// client polls.
type Notification struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`
	Title  string `gorm:"not null" json:"title"`
	Body   string `json:"body"`

	// e.g., {"type": "project_completed", "project_id": "..."}
	Data map[string]string `gorm:"type:jsonb;serializer:json" json:"data"`

	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
