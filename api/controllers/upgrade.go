package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/api/responses"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/logger"
)

type optimisticUpgrader interface {
	OptimisticUpgrade(ctx context.Context, userID uuid.UUID) (*reconcile.Result, error)
}

// OptimisticUpgrade grants pro on the client's word that checkout succeeded.
// Only honored for the authenticated user with a live checkout handoff; the
// payment itself is verified later by the other channels.
func OptimisticUpgrade(coordinator optimisticUpgrader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := authenticatedUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := coordinator.OptimisticUpgrade(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}
