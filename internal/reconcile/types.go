package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/enums"
	"github.com/notelay/notelay-backend/pkg/mollie"
	"github.com/shopspring/decimal"
)

// Channel names the trigger that entered the state machine. Used for ledger
// audit rows, metrics labels, and log fields.
const (
	ChannelWebhook     = "webhook"
	ChannelPoll        = "poll"
	ChannelPaymentLink = "payment_link"
	ChannelOptimistic  = "optimistic"
)

// PaymentEvent is the normalized, processor-agnostic snapshot of a payment.
// The resolver owns the mapping from processor shapes into this struct; no
// other component sees processor types.
type PaymentEvent struct {
	PaymentID  string
	Status     enums.PaymentStatus
	Amount     decimal.Decimal
	Currency   string
	Method     string
	PaidAt     *time.Time
	Metadata   map[string]string
	CustomerID string

	// Email is filled by the resolver's secondary customer lookup when the
	// metadata carries none. Empty when that lookup failed or found nothing.
	Email string
}

// UserIdentity is the resolved owner of a payment.
type UserIdentity struct {
	UserID uuid.UUID
	Email  string
}

// Gateway is the processor surface the reconciliation core depends on.
type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*mollie.Payment, error)
	GetCustomer(ctx context.Context, customerID string) (*mollie.Customer, error)
	GetPaymentLink(ctx context.Context, linkID string) (*mollie.PaymentLink, error)
	CreatePayment(ctx context.Context, input mollie.CreatePaymentInput) (*mollie.Payment, error)
}

// Result is the outcome of one reconciliation pass for one payment.
type Result struct {
	PaymentID string
	Outcome   enums.ReconcileOutcome
	Status    enums.PaymentStatus
	UserID    *uuid.UUID
	Attempts  int
}
