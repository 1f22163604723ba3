package webhooks

import (
	"context"
	"testing"
	"time"
)

type memStore struct {
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = "1"
	return true, nil
}

func (s *memStore) IdempotencyKey(scope, id string) string {
	return "nl:idempotency:" + scope + ":" + id
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestGuardCheckAndMark(t *testing.T) {
	guard, err := NewIdempotencyGuard(newMemStore(), time.Hour, "payments")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "tr_123")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if seen {
		t.Fatalf("first delivery reported as seen")
	}

	seen, err = guard.CheckAndMark(ctx, "tr_123")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !seen {
		t.Fatalf("duplicate not detected")
	}
}

func TestGuardDeleteAllowsRetry(t *testing.T) {
	guard, err := NewIdempotencyGuard(newMemStore(), time.Hour, "payments")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	ctx := context.Background()

	if _, err := guard.CheckAndMark(ctx, "tr_123"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := guard.Delete(ctx, "tr_123"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	seen, err := guard.CheckAndMark(ctx, "tr_123")
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if seen {
		t.Fatalf("delivery still marked after delete")
	}
}

func TestGuardRequiresReference(t *testing.T) {
	guard, err := NewIdempotencyGuard(newMemStore(), time.Hour, "payments")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("empty reference accepted")
	}
}
