package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Handoff links a checkout redirect back to the payment it was created for.
// Written when the checkout session starts, read by the post-redirect result
// poll, and expired by TTL. Losing one degrades the redirect experience only;
// the webhook channel still reconciles the payment.
type Handoff struct {
	HandoffID uuid.UUID `json:"handoff_id"`
	UserID    uuid.UUID `json:"user_id"`
	PaymentID string    `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
}

type handoffBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	HandoffKey(userID string) string
}

// HandoffStore keeps redirect handoffs in Redis, one per user: starting a new
// checkout replaces any pending one.
type HandoffStore struct {
	backend handoffBackend
	ttl     time.Duration
}

// NewHandoffStore wires a Redis-backed handoff store.
func NewHandoffStore(backend handoffBackend, ttl time.Duration) (*HandoffStore, error) {
	if backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redis backend required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "handoff ttl must be positive")
	}
	return &HandoffStore{backend: backend, ttl: ttl}, nil
}

// Put stores the handoff under the user's key, replacing any previous one.
func (s *HandoffStore) Put(ctx context.Context, handoff Handoff) error {
	if handoff.UserID == uuid.Nil || handoff.PaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "handoff requires user id and payment id")
	}
	if handoff.HandoffID == uuid.Nil {
		handoff.HandoffID = uuid.New()
	}
	if handoff.CreatedAt.IsZero() {
		handoff.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(handoff)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode handoff")
	}
	if err := s.backend.Set(ctx, s.backend.HandoffKey(handoff.UserID.String()), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store handoff")
	}
	return nil
}

// Get returns the user's pending handoff, or (nil, nil) when none exists.
func (s *HandoffStore) Get(ctx context.Context, userID uuid.UUID) (*Handoff, error) {
	raw, err := s.backend.Get(ctx, s.backend.HandoffKey(userID.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load handoff")
	}

	var handoff Handoff
	if err := json.Unmarshal([]byte(raw), &handoff); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode handoff")
	}
	return &handoff, nil
}

// Delete removes the user's pending handoff once the redirect is settled.
func (s *HandoffStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.backend.Del(ctx, s.backend.HandoffKey(userID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete handoff")
	}
	return nil
}
