package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID                   uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string                `gorm:"type:text;not null;uniqueIndex"`
	DisplayName          string                `gorm:"column:display_name;not null"`
	IsActive             bool                  `gorm:"column:is_active;not null;default:true"`
	EntitlementTier      enums.EntitlementTier `gorm:"column:entitlement_tier;type:text;not null;default:'free'"`
	EntitlementUpdatedAt *time.Time            `gorm:"column:entitlement_updated_at"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
