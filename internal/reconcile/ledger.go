package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/db"
	"github.com/notelay/notelay-backend/pkg/db/models"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"gorm.io/gorm"
)

// Ledger is the idempotency ledger for payment reconciliation. All
// cross-process coordination runs through its conditional updates; no caller
// holds a lock across external I/O.
type Ledger interface {
	// Observe creates the record on first sight of a payment id and returns
	// the current row either way.
	Observe(ctx context.Context, paymentID string, status enums.PaymentStatus) (*models.ReconciliationRecord, error)
	// RecordStatus refreshes the last observed status, advancing the attempt
	// counter when requested.
	RecordStatus(ctx context.Context, paymentID string, status enums.PaymentStatus, advanceAttempts bool) error
	// SetResolvedUser binds the owner set-once and returns the winning user
	// id, which may belong to a concurrent writer.
	SetResolvedUser(ctx context.Context, paymentID string, userID uuid.UUID) (uuid.UUID, error)
	// MarkApplied flips entitlement_applied false→true. Returns false when a
	// concurrent writer already flipped it.
	MarkApplied(ctx context.Context, paymentID string) (bool, error)
	Get(ctx context.Context, paymentID string) (*models.ReconciliationRecord, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

// NewLedger returns a Postgres-backed idempotency ledger.
func NewLedger(conn *gorm.DB) (Ledger, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db connection required")
	}
	return &ledgerRepo{db: conn}, nil
}

func (r *ledgerRepo) Observe(ctx context.Context, paymentID string, status enums.PaymentStatus) (*models.ReconciliationRecord, error) {
	record, err := r.Get(ctx, paymentID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger record")
	}

	created := &models.ReconciliationRecord{
		PaymentID:          paymentID,
		LastObservedStatus: status,
	}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		// Two channels observed the same payment at once; the loser re-reads.
		if db.IsUniqueViolation(createErr, "") {
			return r.getWrapped(ctx, paymentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create ledger record")
	}
	return created, nil
}

func (r *ledgerRepo) RecordStatus(ctx context.Context, paymentID string, status enums.PaymentStatus, advanceAttempts bool) error {
	updates := map[string]any{
		"last_observed_status": status,
	}
	if advanceAttempts {
		updates["attempts"] = gorm.Expr("attempts + 1")
	}
	result := r.db.WithContext(ctx).
		Model(&models.ReconciliationRecord{}).
		Where("payment_id = ?", paymentID).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update ledger status")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "ledger record missing")
	}
	return nil
}

func (r *ledgerRepo) SetResolvedUser(ctx context.Context, paymentID string, userID uuid.UUID) (uuid.UUID, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReconciliationRecord{}).
		Where("payment_id = ? AND resolved_user_id IS NULL", paymentID).
		Update("resolved_user_id", userID)
	if result.Error != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "bind resolved user")
	}

	// Re-read regardless of the outcome: when the conditional update matched
	// nothing, an earlier writer's binding is authoritative.
	record, err := r.getWrapped(ctx, paymentID)
	if err != nil {
		return uuid.Nil, err
	}
	if record.ResolvedUserID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "resolved user not persisted")
	}
	return *record.ResolvedUserID, nil
}

func (r *ledgerRepo) MarkApplied(ctx context.Context, paymentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReconciliationRecord{}).
		Where("payment_id = ? AND entitlement_applied = ?", paymentID, false).
		Update("entitlement_applied", true)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "flip entitlement flag")
	}
	return result.RowsAffected == 1, nil
}

func (r *ledgerRepo) Get(ctx context.Context, paymentID string) (*models.ReconciliationRecord, error) {
	var record models.ReconciliationRecord
	if err := r.db.WithContext(ctx).First(&record, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ledgerRepo) getWrapped(ctx context.Context, paymentID string) (*models.ReconciliationRecord, error) {
	record, err := r.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger record missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger record")
	}
	return record, nil
}
