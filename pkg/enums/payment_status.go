package enums

import "fmt"

// PaymentStatus is the normalized processor payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusOpen     PaymentStatus = "open"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusExpired  PaymentStatus = "expired"
	PaymentStatusCanceled PaymentStatus = "canceled"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusOpen,
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusExpired,
	PaymentStatusCanceled,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminalFailure reports statuses that can never become paid.
func (p PaymentStatus) IsTerminalFailure() bool {
	switch p {
	case PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCanceled:
		return true
	default:
		return false
	}
}

// IsSettling reports statuses that may still transition to paid.
func (p PaymentStatus) IsSettling() bool {
	return p == PaymentStatusOpen || p == PaymentStatusPending
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
