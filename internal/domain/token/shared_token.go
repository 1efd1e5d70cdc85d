package token

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/datatypes"
)

// DefaultTTL applies when a recorded token carries no expires_at.
const DefaultTTL = time.Hour

// SharedToken proves a user completed a function within a workflow. The raw
// token value is its identifier; TokenHash is globally unique.
type SharedToken struct {
	ID             string         `gorm:"column:token_id;type:text;primaryKey" json:"token_id"`
	SystemID       string         `gorm:"column:system_id;type:text;not null;index:idx_shared_tokens_lookup,priority:2" json:"system_id"`
	WorkflowID     string         `gorm:"column:workflow_id;type:text;not null;index" json:"workflow_id"`
	FunctionID     string         `gorm:"column:function_id;type:text;not null" json:"function_id"`
	UserID         string         `gorm:"column:user_id;type:text;not null;index:idx_shared_tokens_lookup,priority:1" json:"user_id"`
	TokenHash      string         `gorm:"column:token_hash;type:text;not null;uniqueIndex:idx_shared_tokens_hash" json:"token_hash"`
	ExpiresAt      time.Time      `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	LastVerifiedAt *time.Time     `gorm:"column:last_verified_at" json:"last_verified_at,omitempty"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (SharedToken) TableName() string { return "shared_tokens" }

// Hash is the at-rest digest of a raw token (hex SHA-256).
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
