package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
)

// metadata keys accepted as an email attached at payment creation.
var emailMetadataAliases = []string{"email", "user_email", "userEmail"}

// Resolver normalizes processor payments into PaymentEvents. Pure read: the
// only calls it makes are GetPayment and, when the metadata carries no email
// and a customer reference exists, one secondary GetCustomer lookup.
type Resolver struct {
	gateway Gateway
	logg    *logger.Logger
}

// NewResolver wires a payment status resolver.
func NewResolver(gateway Gateway, logg *logger.Logger) (*Resolver, error) {
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	return &Resolver{gateway: gateway, logg: logg}, nil
}

// Resolve fetches the payment and maps it into the normalized event.
// Fails with NOT_FOUND when the processor has no such payment and
// DEPENDENCY_ERROR when the processor is unreachable; both are produced by
// the gateway and pass through untouched.
func (r *Resolver) Resolve(ctx context.Context, paymentID string) (*PaymentEvent, error) {
	payment, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "processor returned empty payment")
	}

	event := &PaymentEvent{
		PaymentID:  payment.ID,
		Status:     normalizeStatus(ctx, r.logg, payment.Status),
		Amount:     payment.Amount.Decimal(),
		Currency:   payment.Amount.Currency,
		Method:     payment.Method,
		PaidAt:     payment.PaidAt,
		Metadata:   payment.Metadata,
		CustomerID: payment.CustomerID,
		Email:      metadataEmail(payment.Metadata),
	}

	if event.Email == "" && payment.CustomerID != "" {
		customer, lookupErr := r.gateway.GetCustomer(ctx, payment.CustomerID)
		if lookupErr != nil {
			// Degrade gracefully: a missing email narrows resolution options
			// but must not fail the whole status resolution.
			if r.logg != nil {
				r.logg.Warn(r.logg.WithPaymentID(ctx, payment.ID), fmt.Sprintf("customer email lookup failed: %v", lookupErr))
			}
		} else if customer != nil {
			event.Email = strings.TrimSpace(customer.Email)
		}
	}

	return event, nil
}

func metadataEmail(metadata map[string]string) string {
	for _, alias := range emailMetadataAliases {
		if value := strings.TrimSpace(metadata[alias]); value != "" {
			return value
		}
	}
	return ""
}

// normalizeStatus maps the processor's status string onto the small internal
// enum. Statuses this service does not know are treated as still settling so
// a later pass can pick up the final state.
func normalizeStatus(ctx context.Context, logg *logger.Logger, raw string) enums.PaymentStatus {
	status, err := enums.ParsePaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		if logg != nil {
			logg.Warn(ctx, fmt.Sprintf("unrecognized processor status %q, treating as pending", raw))
		}
		return enums.PaymentStatusPending
	}
	return status
}
