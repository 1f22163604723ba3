package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
)

type stubLinkVerifier struct {
	result *reconcile.Result
	err    error
	calls  []string
}

func (s *stubLinkVerifier) VerifyPaymentLink(_ context.Context, linkID string, _ string) (*reconcile.Result, error) {
	s.calls = append(s.calls, linkID)
	return s.result, s.err
}

func linkRouter(verifier linkVerifier) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/payment-links/{linkID}/verify", VerifyPaymentLink(verifier, nil))
	return r
}

func TestVerifyPaymentLink(t *testing.T) {
	verifier := &stubLinkVerifier{result: &reconcile.Result{
		PaymentID: "tr_123",
		Outcome:   enums.OutcomeEntitlementApplied,
		Status:    enums.PaymentStatusPaid,
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-links/pl_abc/verify", nil)
	linkRouter(verifier).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(verifier.calls) != 1 || verifier.calls[0] != "pl_abc" {
		t.Fatalf("verify calls = %v", verifier.calls)
	}
}

func TestVerifyPaymentLinkUnknown(t *testing.T) {
	verifier := &stubLinkVerifier{err: pkgerrors.New(pkgerrors.CodeNotFound, "no payment recorded for this link")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-links/pl_missing/verify", nil)
	linkRouter(verifier).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
