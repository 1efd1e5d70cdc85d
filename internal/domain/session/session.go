package session

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultTTL = time.Hour

// Session is local to a client application.
type Session struct {
	ID             string         `gorm:"column:session_id;type:text;primaryKey" json:"session_id"`
	UserID         string         `gorm:"column:user_id;type:text;not null;index" json:"user_id"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	LastAccessedAt time.Time      `gorm:"column:last_accessed_at;not null" json:"last_accessed_at"`
	ExpiresAt      time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	Data           datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}
