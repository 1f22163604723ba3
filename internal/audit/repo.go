package audit

import (
	"context"

	"github.com/notelay/notelay-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists the append-only entitlement audit log.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an audit repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one audit row. Rows are never updated or deleted.
func (r *Repository) Append(ctx context.Context, row *models.EntitlementAudit) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListByPaymentID returns the audit rows recorded for a payment.
func (r *Repository) ListByPaymentID(ctx context.Context, paymentID string) ([]models.EntitlementAudit, error) {
	var rows []models.EntitlementAudit
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
