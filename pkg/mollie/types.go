package mollie

import (
	"strings"
	"time"

	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Amount is the processor's money representation (decimal string + currency).
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Decimal parses the amount value, returning zero on malformed input. The
// amount is informational for reconciliation, never authoritative.
func (a Amount) Decimal() decimal.Decimal {
	parsed, err := decimal.NewFromString(strings.TrimSpace(a.Value))
	if err != nil {
		return decimal.Zero
	}
	return parsed
}

// Payment mirrors the processor's payment resource.
type Payment struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      Amount            `json:"amount"`
	Description string            `json:"description,omitempty"`
	Method      string            `json:"method,omitempty"`
	PaidAt      *time.Time        `json:"paidAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CustomerID  string            `json:"customerId,omitempty"`
	Links       PaymentLinks      `json:"_links,omitempty"`
}

// PaymentLinks carries the HAL links the hosted checkout flow needs.
type PaymentLinks struct {
	Checkout *Link `json:"checkout,omitempty"`
}

// Link is a single HAL link.
type Link struct {
	Href string `json:"href"`
}

// CheckoutURL returns the hosted checkout URL if the processor supplied one.
func (p *Payment) CheckoutURL() string {
	if p == nil || p.Links.Checkout == nil {
		return ""
	}
	return p.Links.Checkout.Href
}

// Customer mirrors the processor's customer resource (email lookup only).
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PaymentLink mirrors the processor's payment-link resource. The link id is an
// indirect reference; PaymentID is the underlying payment once one exists.
type PaymentLink struct {
	ID        string     `json:"id"`
	PaymentID string     `json:"paymentId,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// CreatePaymentInput is the request body for opening a payment.
type CreatePaymentInput struct {
	Amount      Amount            `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (in CreatePaymentInput) validate() error {
	if strings.TrimSpace(in.Amount.Value) == "" || strings.TrimSpace(in.Amount.Currency) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount and currency are required")
	}
	if _, err := decimal.NewFromString(in.Amount.Value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment amount must be a decimal string")
	}
	if strings.TrimSpace(in.RedirectURL) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "redirect url is required")
	}
	return nil
}
