package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/db/models"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"gorm.io/gorm"
)

// metadata keys accepted as an explicit user reference attached at payment
// creation. Treated as equivalent; first present alias wins.
var userIDMetadataAliases = []string{"user_id", "userId", "uid"}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// Strategy resolves a payment event to a user identity. Deterministic and
// side-effect-free: precedence is explicit metadata user id, then metadata or
// customer email, then Unresolved. Unresolved is a valid classification, not
// an error — the caller records it for manual follow-up.
type Strategy struct {
	users userFinder
}

// NewStrategy wires a user resolution strategy.
func NewStrategy(users userFinder) (*Strategy, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user finder required")
	}
	return &Strategy{users: users}, nil
}

// ResolveUser applies the precedence order. Returns (nil, nil) for
// Unresolved; an AMBIGUOUS_MATCH error propagates untouched so the caller
// can surface it for manual resolution.
func (s *Strategy) ResolveUser(ctx context.Context, event *PaymentEvent) (*UserIdentity, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}

	if id, ok := metadataUserID(event.Metadata); ok {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Stale or foreign id in metadata; fall through to email.
				return s.resolveByEmail(ctx, event)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user by id")
		}
		return &UserIdentity{UserID: user.ID, Email: user.Email}, nil
	}

	return s.resolveByEmail(ctx, event)
}

func (s *Strategy) resolveByEmail(ctx context.Context, event *PaymentEvent) (*UserIdentity, error) {
	email := strings.TrimSpace(event.Email)
	if email == "" {
		return nil, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &UserIdentity{UserID: user.ID, Email: user.Email}, nil
}

func metadataUserID(metadata map[string]string) (uuid.UUID, bool) {
	for _, alias := range userIDMetadataAliases {
		raw := strings.TrimSpace(metadata[alias])
		if raw == "" {
			continue
		}
		if id, err := uuid.Parse(raw); err == nil && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
