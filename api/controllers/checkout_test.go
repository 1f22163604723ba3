package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/api/middleware"
	"github.com/notelay/notelay-backend/internal/checkout"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/db/models"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
)

type stubCheckout struct {
	session  *checkout.Session
	startErr error
	finished []uuid.UUID
}

func (s *stubCheckout) Start(_ context.Context, _ *models.User) (*checkout.Session, error) {
	return s.session, s.startErr
}

func (s *stubCheckout) Finish(_ context.Context, userID uuid.UUID) error {
	s.finished = append(s.finished, userID)
	return nil
}

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s *stubUserLoader) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

type stubPoller struct {
	result *reconcile.Result
	err    error
	calls  []string
}

func (s *stubPoller) PollUntilSettled(_ context.Context, paymentID string, _ string) (*reconcile.Result, error) {
	s.calls = append(s.calls, paymentID)
	return s.result, s.err
}

type stubHandoffReader struct {
	handoff *reconcile.Handoff
	err     error
}

func (s *stubHandoffReader) Get(context.Context, uuid.UUID) (*reconcile.Handoff, error) {
	return s.handoff, s.err
}

func authedRequest(method, target string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	return req.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestStartCheckout(t *testing.T) {
	userID := uuid.New()
	handoffID := uuid.New()
	service := &stubCheckout{session: &checkout.Session{
		PaymentID:   "tr_123",
		CheckoutURL: "https://pay.example/checkout/tr_123",
		HandoffID:   handoffID,
	}}
	users := &stubUserLoader{user: &models.User{ID: userID, Email: "ada@example.com"}}
	handler := StartCheckout(service, users, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/checkout", userID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	data := decodeEnvelope(t, rec)
	if data["payment_id"] != "tr_123" || data["handoff_id"] != handoffID.String() {
		t.Fatalf("data = %v", data)
	}
}

func TestStartCheckoutRequiresAuth(t *testing.T) {
	handler := StartCheckout(&stubCheckout{}, &stubUserLoader{}, nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckoutResultSettled(t *testing.T) {
	userID := uuid.New()
	poller := &stubPoller{result: &reconcile.Result{
		PaymentID: "tr_123",
		Outcome:   enums.OutcomeEntitlementApplied,
		Status:    enums.PaymentStatusPaid,
	}}
	handoffs := &stubHandoffReader{handoff: &reconcile.Handoff{UserID: userID, PaymentID: "tr_123"}}
	service := &stubCheckout{}
	handler := CheckoutResult(poller, handoffs, service, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodGet, "/api/v1/checkout/result", userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec)
	if data["outcome"] != string(enums.OutcomeEntitlementApplied) || data["entitlement_applied"] != true {
		t.Fatalf("data = %v", data)
	}
	if len(poller.calls) != 1 || poller.calls[0] != "tr_123" {
		t.Fatalf("poll calls = %v", poller.calls)
	}
	if len(service.finished) != 1 {
		t.Fatalf("handoff not finished after terminal outcome")
	}
}

func TestCheckoutResultStillSettlingKeepsHandoff(t *testing.T) {
	userID := uuid.New()
	poller := &stubPoller{result: &reconcile.Result{
		PaymentID: "tr_123",
		Outcome:   enums.OutcomePendingRetry,
		Status:    enums.PaymentStatusPending,
	}}
	handoffs := &stubHandoffReader{handoff: &reconcile.Handoff{UserID: userID, PaymentID: "tr_123"}}
	service := &stubCheckout{}
	handler := CheckoutResult(poller, handoffs, service, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodGet, "/api/v1/checkout/result", userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec)
	if data["outcome"] != string(enums.OutcomePendingRetry) || data["entitlement_applied"] != false {
		t.Fatalf("data = %v", data)
	}
	if len(service.finished) != 0 {
		t.Fatalf("handoff dropped while payment still settling")
	}
}

func TestCheckoutResultQueryParamOverride(t *testing.T) {
	userID := uuid.New()
	poller := &stubPoller{result: &reconcile.Result{
		PaymentID: "tr_redirect",
		Outcome:   enums.OutcomeEntitlementApplied,
		Status:    enums.PaymentStatusPaid,
	}}
	// No handoff stored; the redirect preserved the payment id instead.
	handler := CheckoutResult(poller, &stubHandoffReader{}, &stubCheckout{}, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodGet, "/api/v1/checkout/result?payment_id=tr_redirect", userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(poller.calls) != 1 || poller.calls[0] != "tr_redirect" {
		t.Fatalf("poll calls = %v", poller.calls)
	}
}

func TestCheckoutResultWithoutCheckout(t *testing.T) {
	handler := CheckoutResult(&stubPoller{}, &stubHandoffReader{}, &stubCheckout{}, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodGet, "/api/v1/checkout/result", uuid.New()))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckoutResultAmbiguousConflict(t *testing.T) {
	userID := uuid.New()
	poller := &stubPoller{err: pkgerrors.New(pkgerrors.CodeAmbiguous, "multiple users share this email")}
	handoffs := &stubHandoffReader{handoff: &reconcile.Handoff{UserID: userID, PaymentID: "tr_123"}}
	handler := CheckoutResult(poller, handoffs, &stubCheckout{}, nil)

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodGet, "/api/v1/checkout/result", userID))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}
