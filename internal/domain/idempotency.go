// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency represents a recorded result of a previously processed request,
// keyed by (user_id, scope, key). Scope names the operation (for example
// "fn:orchestrator"). Response holds the envelope that was returned, so a
// retry with the same key replays it without re-executing side effects such
// as a second provider call. RequestHash fingerprints the request body; a
// reused key with a different body must not be answered from this record.
type Idempotency struct {
	ID          string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:2"`
	Key         string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:3"`
	RequestHash string         `gorm:"type:TEXT"`
	Status      int            `gorm:"type:INTEGER NOT NULL"`
	Response    datatypes.JSON `gorm:"type:TEXT"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
