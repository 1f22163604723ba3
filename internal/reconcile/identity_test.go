package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/db/models"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"gorm.io/gorm"
)

type stubUserFinder struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
	err     error
}

func (s *stubUserFinder) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserFinder) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byEmail[email], nil
}

func TestResolveUserExplicitIDBeatsEmail(t *testing.T) {
	idUser := &models.User{ID: uuid.New(), Email: "by-id@example.com"}
	emailUser := &models.User{ID: uuid.New(), Email: "by-email@example.com"}
	finder := &stubUserFinder{
		byID:    map[uuid.UUID]*models.User{idUser.ID: idUser},
		byEmail: map[string]*models.User{"by-email@example.com": emailUser},
	}
	strategy, err := NewStrategy(finder)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	identity, err := strategy.ResolveUser(context.Background(), &PaymentEvent{
		Metadata: map[string]string{"user_id": idUser.ID.String()},
		Email:    "by-email@example.com",
	})
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if identity == nil || identity.UserID != idUser.ID {
		t.Fatalf("identity = %+v, want user %s", identity, idUser.ID)
	}
}

func TestResolveUserStaleIDFallsBackToEmail(t *testing.T) {
	emailUser := &models.User{ID: uuid.New(), Email: "ada@example.com"}
	finder := &stubUserFinder{byEmail: map[string]*models.User{"ada@example.com": emailUser}}
	strategy, err := NewStrategy(finder)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	identity, err := strategy.ResolveUser(context.Background(), &PaymentEvent{
		Metadata: map[string]string{"user_id": uuid.New().String()},
		Email:    "ada@example.com",
	})
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if identity == nil || identity.UserID != emailUser.ID {
		t.Fatalf("identity = %+v, want user %s", identity, emailUser.ID)
	}
}

func TestResolveUserMetadataAliases(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}
	finder := &stubUserFinder{byID: map[uuid.UUID]*models.User{user.ID: user}}
	strategy, err := NewStrategy(finder)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	for _, alias := range []string{"user_id", "userId", "uid"} {
		identity, err := strategy.ResolveUser(context.Background(), &PaymentEvent{
			Metadata: map[string]string{alias: user.ID.String()},
		})
		if err != nil {
			t.Fatalf("alias %s: %v", alias, err)
		}
		if identity == nil || identity.UserID != user.ID {
			t.Fatalf("alias %s: identity = %+v", alias, identity)
		}
	}
}

func TestResolveUserUnresolvedIsNotAnError(t *testing.T) {
	strategy, err := NewStrategy(&stubUserFinder{})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	identity, err := strategy.ResolveUser(context.Background(), &PaymentEvent{
		Metadata: map[string]string{"user_id": "not-a-uuid"},
	})
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if identity != nil {
		t.Fatalf("identity = %+v, want nil", identity)
	}
}

func TestResolveUserAmbiguousPropagates(t *testing.T) {
	strategy, err := NewStrategy(&stubUserFinder{
		err: pkgerrors.New(pkgerrors.CodeAmbiguous, "multiple users share this email"),
	})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	_, err = strategy.ResolveUser(context.Background(), &PaymentEvent{Email: "dup@example.com"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeAmbiguous {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeAmbiguous)
	}
}
