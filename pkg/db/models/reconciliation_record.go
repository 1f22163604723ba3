package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/enums"
)

// ReconciliationRecord is the idempotency ledger entry for one payment.
// Keyed by the processor's payment id (or a synthesized key for the optimistic
// upgrade path). Rows are created on first observation and only ever updated
// afterwards; they are never deleted — the row is the audit trail of how a
// payment was processed.
//
// Invariants enforced at the repo layer:
//   - entitlement_applied flips false→true at most once (conditional update);
//   - resolved_user_id is immutable once set.
type ReconciliationRecord struct {
	PaymentID          string              `gorm:"column:payment_id;type:text;primaryKey"`
	LastObservedStatus enums.PaymentStatus `gorm:"column:last_observed_status;type:text;not null"`
	ResolvedUserID     *uuid.UUID          `gorm:"column:resolved_user_id;type:uuid"`
	EntitlementApplied bool                `gorm:"column:entitlement_applied;not null;default:false"`
	Attempts           int                 `gorm:"column:attempts;not null;default:0"`
	FirstSeenAt        time.Time           `gorm:"column:first_seen_at;autoCreateTime"`
	LastUpdatedAt      time.Time           `gorm:"column:last_updated_at;autoUpdateTime"`
}

// TableName pins the ledger table.
func (ReconciliationRecord) TableName() string {
	return "reconciliation_records"
}
