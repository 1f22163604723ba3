package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
)

type stubUpgrader struct {
	result *reconcile.Result
	err    error
	calls  []uuid.UUID
}

func (s *stubUpgrader) OptimisticUpgrade(_ context.Context, userID uuid.UUID) (*reconcile.Result, error) {
	s.calls = append(s.calls, userID)
	return s.result, s.err
}

func TestOptimisticUpgrade(t *testing.T) {
	userID := uuid.New()
	upgrader := &stubUpgrader{result: &reconcile.Result{
		PaymentID: "tr_123",
		Outcome:   enums.OutcomeEntitlementApplied,
		Status:    enums.PaymentStatusPaid,
	}}
	handler := OptimisticUpgrade(upgrader, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/upgrade/optimistic", userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(upgrader.calls) != 1 || upgrader.calls[0] != userID {
		t.Fatalf("upgrade calls = %v", upgrader.calls)
	}
	data := decodeEnvelope(t, rec)
	if data["entitlement_applied"] != true {
		t.Fatalf("data = %v", data)
	}
}

func TestOptimisticUpgradeWithoutCheckout(t *testing.T) {
	upgrader := &stubUpgrader{err: pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress for this user")}
	handler := OptimisticUpgrade(upgrader, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/upgrade/optimistic", uuid.New()))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestOptimisticUpgradeRequiresAuth(t *testing.T) {
	handler := OptimisticUpgrade(&stubUpgrader{}, nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/upgrade/optimistic", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
