package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/notelay/notelay-backend/api/responses"
	"github.com/notelay/notelay-backend/internal/reconcile"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
)

type linkVerifier interface {
	VerifyPaymentLink(ctx context.Context, linkID string, channel string) (*reconcile.Result, error)
}

// VerifyPaymentLink reconciles the payment behind a shared payment link. The
// caller holds only the link id; the payment id is looked up server side.
func VerifyPaymentLink(coordinator linkVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		linkID := strings.TrimSpace(chi.URLParam(r, "linkID"))
		if linkID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "link id is required"))
			return
		}

		result, err := coordinator.VerifyPaymentLink(ctx, linkID, reconcile.ChannelPaymentLink)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}
