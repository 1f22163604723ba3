package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/db/models"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
)

type entitlementStore interface {
	UpdateEntitlement(ctx context.Context, id uuid.UUID, tier enums.EntitlementTier, at time.Time) error
}

type auditLog interface {
	Append(ctx context.Context, row *models.EntitlementAudit) error
}

// Applier grants the upgraded tier to a resolved user. The tier write is a
// data-layer no-op when the user already holds the tier, so two appliers
// racing past the ledger check converge on the same state. The audit append
// is best-effort and never blocks or reverts the entitlement write.
type Applier struct {
	users entitlementStore
	audit auditLog
	tier  enums.EntitlementTier
	logg  *logger.Logger
}

// NewApplier wires an entitlement applier.
func NewApplier(users entitlementStore, audit auditLog, tier enums.EntitlementTier, logg *logger.Logger) (*Applier, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("invalid upgraded tier %q", tier))
	}
	return &Applier{users: users, audit: audit, tier: tier, logg: logg}, nil
}

// Apply upgrades the user and records the grant in the audit log.
func (a *Applier) Apply(ctx context.Context, event *PaymentEvent, userID uuid.UUID, channel string) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	if err := a.users.UpdateEntitlement(ctx, userID, a.tier, time.Now().UTC()); err != nil {
		return err
	}

	if a.audit == nil {
		return nil
	}
	row := &models.EntitlementAudit{
		PaymentID: event.PaymentID,
		UserID:    userID,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Method:    event.Method,
		Channel:   channel,
	}
	if err := a.audit.Append(ctx, row); err != nil && a.logg != nil {
		a.logg.Error(a.logg.WithPaymentID(ctx, event.PaymentID), "entitlement audit append failed", err)
	}
	return nil
}
