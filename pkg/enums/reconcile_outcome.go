package enums

// ReconcileOutcome classifies a single pass of the reconciliation machine for
// one payment. PendingRetry is the only non-terminal outcome; Unresolvable is
// terminal for the pass but re-enterable by a later trigger.
type ReconcileOutcome string

const (
	OutcomeEntitlementApplied ReconcileOutcome = "entitlement_applied"
	OutcomeAlreadyApplied     ReconcileOutcome = "already_applied"
	OutcomeUnresolvable       ReconcileOutcome = "unresolvable"
	OutcomeNotPaid            ReconcileOutcome = "not_paid"
	OutcomePendingRetry       ReconcileOutcome = "pending_retry"
)

// String implements fmt.Stringer.
func (o ReconcileOutcome) String() string {
	return string(o)
}

// IsTerminal reports whether the outcome ends reconciliation for this trigger.
func (o ReconcileOutcome) IsTerminal() bool {
	return o != OutcomePendingRetry
}

// Succeeded reports outcomes where the user holds the entitlement.
func (o ReconcileOutcome) Succeeded() bool {
	return o == OutcomeEntitlementApplied || o == OutcomeAlreadyApplied
}
