package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntitlementAudit is an append-only row recording one entitlement grant.
// Writes are best-effort: a failed append never blocks the entitlement write.
type EntitlementAudit struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID string          `gorm:"column:payment_id;type:text;not null;index"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency  string          `gorm:"column:currency;type:text;not null"`
	Method    string          `gorm:"column:method;type:text"`
	Channel   string          `gorm:"column:channel;type:text;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the audit table.
func (EntitlementAudit) TableName() string {
	return "entitlement_audits"
}
