package controllers

import (
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/enums"
)

// reconcileResponse is the public shape of a reconciliation result.
type reconcileResponse struct {
	PaymentID          string `json:"payment_id"`
	Outcome            string `json:"outcome"`
	Status             string `json:"status"`
	EntitlementApplied bool   `json:"entitlement_applied"`
	Message            string `json:"message"`
}

func toReconcileResponse(result *reconcile.Result) reconcileResponse {
	return reconcileResponse{
		PaymentID:          result.PaymentID,
		Outcome:            result.Outcome.String(),
		Status:             result.Status.String(),
		EntitlementApplied: result.Outcome.Succeeded(),
		Message:            outcomeMessage(result.Outcome),
	}
}

func outcomeMessage(outcome enums.ReconcileOutcome) string {
	switch outcome {
	case enums.OutcomeEntitlementApplied, enums.OutcomeAlreadyApplied:
		return "your account has been upgraded"
	case enums.OutcomeUnresolvable:
		return "payment received; the upgrade is being finalized"
	case enums.OutcomeNotPaid:
		return "the payment was not completed"
	case enums.OutcomePendingRetry:
		return "the payment is still processing, check back shortly"
	default:
		return ""
	}
}
