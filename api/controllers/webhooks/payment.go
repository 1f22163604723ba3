package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, paymentID string, channel string) (*reconcile.Result, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, paymentRef string) (bool, error)
	Delete(ctx context.Context, paymentRef string) error
}

// PaymentWebhook ingests processor payment notifications.
//
// The handler acknowledges with 200 no matter what: the notification is only
// a hint carrying a payment id, truth is re-fetched from the processor, and a
// non-200 would put the delivery into the processor's retry storm. Failures
// are logged and the idempotency mark is dropped so the next delivery gets a
// fresh pass.
func PaymentWebhook(coordinator reconciler, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer ack(w)

		if coordinator == nil {
			logError(logg, ctx, "webhook coordinator unavailable", nil)
			return
		}

		paymentID := extractPaymentRef(r)
		if paymentID == "" {
			logWarn(logg, ctx, "webhook delivery carried no payment reference")
			return
		}
		if logg != nil {
			ctx = logg.WithPaymentID(ctx, paymentID)
		}

		guarded := false
		if guard != nil {
			alreadySeen, err := guard.CheckAndMark(ctx, paymentID)
			if err != nil {
				// Redis trouble must not drop the delivery; the ledger keeps
				// the duplicate harmless.
				logWarn(logg, ctx, fmt.Sprintf("webhook idempotency check failed: %v", err))
			} else if alreadySeen {
				return
			} else {
				guarded = true
			}
		}

		result, err := coordinator.Reconcile(ctx, paymentID, reconcile.ChannelWebhook)
		if err != nil {
			if guarded {
				_ = guard.Delete(ctx, paymentID)
			}
			logError(logg, ctx, "webhook reconciliation failed", err)
			return
		}
		if guarded && !result.Outcome.IsTerminal() {
			// The processor notifies per status change under the same payment
			// id. A mark held for a still-settling payment would make the
			// later "paid" notification bounce off the guard, so it only
			// outlives the delivery once the payment reached a terminal state.
			_ = guard.Delete(ctx, paymentID)
		}
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("webhook delivery processed: %s", result.Outcome))
		}
	}
}

// ack always returns 200 with an empty body.
func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// extractPaymentRef pulls the payment id out of the delivery. Form-encoded
// bodies carry it as "id"; JSON bodies have shown it as "id", "paymentId" or
// nested under "data.id" depending on the notification generation. Bare-id
// bodies and "?id=" query params cover the older sender variants.
func extractPaymentRef(r *http.Request) string {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		if ref := strings.TrimSpace(r.PostFormValue("id")); ref != "" {
			return ref
		}
		return strings.TrimSpace(r.URL.Query().Get("id"))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ""
	}
	var payload struct {
		ID        string `json:"id"`
		PaymentID string `json:"paymentId"`
		Data      struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, candidate := range []string{payload.ID, payload.PaymentID, payload.Data.ID} {
			if ref := strings.TrimSpace(candidate); ref != "" {
				return ref
			}
		}
	} else if ref := bareRef(body); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.URL.Query().Get("id"))
}

// bareRef accepts a body that is nothing but the payment id itself.
func bareRef(body []byte) string {
	ref := strings.TrimSpace(string(body))
	if ref == "" || len(ref) > 64 || strings.ContainsAny(ref, " \n\t{}\"") {
		return ""
	}
	return ref
}

func logWarn(logg *logger.Logger, ctx context.Context, msg string) {
	if logg != nil {
		logg.Warn(ctx, msg)
	}
}

func logError(logg *logger.Logger, ctx context.Context, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
