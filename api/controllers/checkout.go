package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/api/middleware"
	"github.com/notelay/notelay-backend/api/responses"
	"github.com/notelay/notelay-backend/internal/checkout"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/db/models"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
)

type checkoutStarter interface {
	Start(ctx context.Context, user *models.User) (*checkout.Session, error)
	Finish(ctx context.Context, userID uuid.UUID) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type resultPoller interface {
	PollUntilSettled(ctx context.Context, paymentID string, channel string) (*reconcile.Result, error)
}

type handoffReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*reconcile.Handoff, error)
}

type checkoutResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	HandoffID   string `json:"handoff_id"`
}

// StartCheckout opens a hosted checkout session for the authenticated user.
func StartCheckout(service checkoutStarter, users userLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := authenticatedUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unknown user"))
			return
		}

		session, err := service.Start(ctx, user)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			PaymentID:   session.PaymentID,
			CheckoutURL: session.CheckoutURL,
			HandoffID:   session.HandoffID.String(),
		})
	}
}

// CheckoutResult polls the payment the user was redirected back from. The
// payment id comes from the "payment_id" query param when the redirect
// preserved it, otherwise from the caller's handoff context. Bounded polling:
// a payment still settling when the budget runs out reports pending_retry and
// the client may ask again, the handoff stays put.
func CheckoutResult(coordinator resultPoller, handoffs handoffReader, service checkoutStarter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := authenticatedUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		paymentID := r.URL.Query().Get("payment_id")
		if paymentID == "" {
			handoff, err := handoffs.Get(ctx, userID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if handoff == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress"))
				return
			}
			paymentID = handoff.PaymentID
		}

		result, err := coordinator.PollUntilSettled(ctx, paymentID, reconcile.ChannelPoll)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if result.Outcome.IsTerminal() {
			if err := service.Finish(ctx, userID); err != nil && logg != nil {
				logg.Warn(ctx, "dropping settled checkout handoff failed")
			}
		}

		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}

func authenticatedUserID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
