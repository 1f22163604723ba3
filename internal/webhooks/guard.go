package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notelay/notelay-backend/pkg/redis"
)

// IdempotencyGuard deduplicates webhook deliveries in Redis. The guard is an
// optimization over the ledger, not the correctness mechanism: a duplicate
// that slips past it still converges in the reconciliation ledger.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the payment reference was already seen, marking
// it seen otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, paymentRef string) (bool, error) {
	if paymentRef == "" {
		return false, errors.New("payment reference is required")
	}
	key := g.store.IdempotencyKey(g.scope, paymentRef)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete drops the mark so a failed delivery can be retried by the processor.
func (g *IdempotencyGuard) Delete(ctx context.Context, paymentRef string) error {
	if paymentRef == "" {
		return errors.New("payment reference is required")
	}
	key := g.store.IdempotencyKey(g.scope, paymentRef)
	return g.store.Del(ctx, key)
}
