package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/pkg/config"
	"github.com/notelay/notelay-backend/pkg/db/models"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
	"github.com/notelay/notelay-backend/pkg/mollie"
)

type paymentCreator interface {
	CreatePayment(ctx context.Context, input mollie.CreatePaymentInput) (*mollie.Payment, error)
}

type handoffWriter interface {
	Put(ctx context.Context, handoff reconcile.Handoff) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Session is what the client needs to continue a started checkout.
type Session struct {
	PaymentID   string
	CheckoutURL string
	HandoffID   uuid.UUID
}

// Service opens hosted checkout sessions with the processor and records the
// redirect handoff so the post-redirect poll can find the payment again.
type Service struct {
	gateway  paymentCreator
	handoffs handoffWriter
	mollie   config.MollieConfig
	product  config.CheckoutConfig
	logg     *logger.Logger
}

// ServiceParams carries the checkout service dependencies.
type ServiceParams struct {
	Gateway  paymentCreator
	Handoffs handoffWriter
	Mollie   config.MollieConfig
	Product  config.CheckoutConfig
	Logger   *logger.Logger
}

// NewService wires a checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Handoffs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "handoff store required")
	}
	if params.Mollie.RedirectURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout redirect url required")
	}
	return &Service{
		gateway:  params.Gateway,
		handoffs: params.Handoffs,
		mollie:   params.Mollie,
		product:  params.Product,
		logg:     params.Logger,
	}, nil
}

// Start opens a payment for the user's upgrade and stores the handoff. The
// payment carries the user id and email in its metadata, which is what later
// lets any channel resolve the owner without a session.
func (s *Service) Start(ctx context.Context, user *models.User) (*Session, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}

	payment, err := s.gateway.CreatePayment(ctx, mollie.CreatePaymentInput{
		Amount: mollie.Amount{
			Value:    s.product.PriceValue,
			Currency: s.product.PriceCurrency,
		},
		Description: s.product.Description,
		RedirectURL: s.mollie.RedirectURL,
		WebhookURL:  s.mollie.WebhookURL,
		Metadata: map[string]string{
			"user_id": user.ID.String(),
			"email":   user.Email,
		},
	})
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "processor returned no payment")
	}

	handoff := reconcile.Handoff{
		HandoffID: uuid.New(),
		UserID:    user.ID,
		PaymentID: payment.ID,
	}
	if err := s.handoffs.Put(ctx, handoff); err != nil {
		// The payment exists at the processor but the redirect context is
		// lost; the webhook channel still reconciles it.
		if s.logg != nil {
			s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID), "storing checkout handoff failed", err)
		}
		return nil, err
	}

	return &Session{
		PaymentID:   payment.ID,
		CheckoutURL: payment.CheckoutURL(),
		HandoffID:   handoff.HandoffID,
	}, nil
}

// Finish drops the user's redirect handoff once the result is settled.
func (s *Service) Finish(ctx context.Context, userID uuid.UUID) error {
	return s.handoffs.Delete(ctx, userID)
}
