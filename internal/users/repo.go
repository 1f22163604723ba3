package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/db/models"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.EntitlementTier == "" {
		user.EntitlementTier = enums.EntitlementTierFree
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the single user matching the normalized email.
// Returns (nil, nil) when no user matches; an AMBIGUOUS_MATCH error when more
// than one does — a duplicate is never auto-resolved by picking one.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, nil
	}

	var matches []models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", normalized).
		Limit(2).
		Find(&matches).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		user := matches[0]
		return &user, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeAmbiguous, "multiple users share this email").
			WithDetails(map[string]any{"email": normalized})
	}
}

// UpdateEntitlement sets the user's tier and stamps the update time. Granting
// a tier the user already holds is a strict no-op: neither the tier nor the
// stamp changes, so two appliers racing past the ledger check and a second
// payment for an already-upgraded user all converge on the same row state.
func (r *Repository) UpdateEntitlement(ctx context.Context, id uuid.UUID, tier enums.EntitlementTier, at time.Time) error {
	if !tier.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entitlement tier")
	}

	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND entitlement_tier <> ?", id, tier).
		Updates(map[string]any{
			"entitlement_tier":       tier,
			"entitlement_updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Zero rows is either the no-op or a missing user; only the latter
		// is an error.
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
	}
	return nil
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
