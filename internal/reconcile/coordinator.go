package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/notelay/notelay-backend/pkg/config"
	"github.com/notelay/notelay-backend/pkg/enums"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
	"github.com/notelay/notelay-backend/pkg/metrics"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

type statusResolver interface {
	Resolve(ctx context.Context, paymentID string) (*PaymentEvent, error)
}

type userResolver interface {
	ResolveUser(ctx context.Context, event *PaymentEvent) (*UserIdentity, error)
}

type entitlementApplier interface {
	Apply(ctx context.Context, event *PaymentEvent, userID uuid.UUID, channel string) error
}

type handoffReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*Handoff, error)
}

// Coordinator drives the reconciliation state machine. Every channel funnels
// into Reconcile; the ledger's conditional updates, not in-process locks, make
// concurrent passes over the same payment converge on one entitlement.
type Coordinator struct {
	ledger   Ledger
	resolver statusResolver
	identity userResolver
	applier  entitlementApplier
	gateway  Gateway
	handoffs handoffReader
	metrics  *metrics.ReconcileMetrics
	cfg      config.ReconcileConfig
	logg     *logger.Logger
}

// CoordinatorParams carries the coordinator dependencies.
type CoordinatorParams struct {
	Ledger   Ledger
	Resolver statusResolver
	Identity userResolver
	Applier  entitlementApplier
	Gateway  Gateway
	Handoffs handoffReader
	Metrics  *metrics.ReconcileMetrics
	Config   config.ReconcileConfig
	Logger   *logger.Logger
}

// NewCoordinator wires a reconciliation coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "status resolver required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity strategy required")
	}
	if params.Applier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement applier required")
	}
	return &Coordinator{
		ledger:   params.Ledger,
		resolver: params.Resolver,
		identity: params.Identity,
		applier:  params.Applier,
		gateway:  params.Gateway,
		handoffs: params.Handoffs,
		metrics:  params.Metrics,
		cfg:      params.Config,
		logg:     params.Logger,
	}, nil
}

// Reconcile runs a single pass for one payment id.
//
// Outcome mapping: terminal processor failures become NotPaid, still-settling
// statuses become PendingRetry, and paid payments end in EntitlementApplied,
// AlreadyApplied or Unresolvable. A processor 404 propagates as NOT_FOUND and
// an ambiguous user match as AMBIGUOUS_MATCH; neither advances the ledger.
func (c *Coordinator) Reconcile(ctx context.Context, paymentID string, channel string) (*Result, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	ctx = c.withLogFields(ctx, paymentID, channel)

	record, err := c.ledger.Observe(ctx, paymentID, enums.PaymentStatusOpen)
	if err != nil {
		return nil, err
	}

	// Fast path: entitlement already applied, no processor round-trip.
	if record.EntitlementApplied {
		return c.finish(ctx, channel, &Result{
			PaymentID: paymentID,
			Outcome:   enums.OutcomeAlreadyApplied,
			Status:    record.LastObservedStatus,
			UserID:    record.ResolvedUserID,
			Attempts:  record.Attempts,
		}), nil
	}

	event, err := c.resolver.Resolve(ctx, paymentID)
	if err != nil {
		if pkgerrors.IsRetryable(err) {
			// Processor unreachable: the payment state is unknown, not failed.
			c.warn(ctx, fmt.Sprintf("status resolution deferred: %v", err))
			attempts := c.advance(ctx, paymentID, record.LastObservedStatus, record.Attempts)
			return c.finish(ctx, channel, &Result{
				PaymentID: paymentID,
				Outcome:   enums.OutcomePendingRetry,
				Status:    record.LastObservedStatus,
				Attempts:  attempts,
			}), nil
		}
		return nil, err
	}

	switch {
	case event.Status.IsTerminalFailure():
		if err := c.ledger.RecordStatus(ctx, paymentID, event.Status, false); err != nil {
			return nil, err
		}
		return c.finish(ctx, channel, &Result{
			PaymentID: paymentID,
			Outcome:   enums.OutcomeNotPaid,
			Status:    event.Status,
			Attempts:  record.Attempts,
		}), nil

	case event.Status.IsSettling():
		attempts := c.advance(ctx, paymentID, event.Status, record.Attempts)
		return c.finish(ctx, channel, &Result{
			PaymentID: paymentID,
			Outcome:   enums.OutcomePendingRetry,
			Status:    event.Status,
			Attempts:  attempts,
		}), nil
	}

	if err := c.ledger.RecordStatus(ctx, paymentID, event.Status, false); err != nil {
		return nil, err
	}
	return c.reconcilePaid(ctx, record.ResolvedUserID, event, channel, record.Attempts)
}

// reconcilePaid resolves the owner and applies the entitlement exactly once.
func (c *Coordinator) reconcilePaid(ctx context.Context, boundUserID *uuid.UUID, event *PaymentEvent, channel string, attempts int) (*Result, error) {
	var userID uuid.UUID
	if boundUserID != nil {
		// A previous pass bound the owner; the binding is immutable even if
		// resolution inputs have changed since.
		userID = *boundUserID
	} else {
		identity, err := c.identity.ResolveUser(ctx, event)
		if err != nil {
			return nil, err
		}
		if identity == nil {
			c.warn(ctx, "paid payment has no resolvable owner")
			return c.finish(ctx, channel, &Result{
				PaymentID: event.PaymentID,
				Outcome:   enums.OutcomeUnresolvable,
				Status:    event.Status,
				Attempts:  attempts,
			}), nil
		}

		winner, err := c.ledger.SetResolvedUser(ctx, event.PaymentID, identity.UserID)
		if err != nil {
			return nil, err
		}
		if winner != identity.UserID {
			c.warn(ctx, "concurrent pass bound a different owner, deferring to it")
		}
		userID = winner
	}

	if err := c.applier.Apply(ctx, event, userID, channel); err != nil {
		return nil, err
	}

	won, err := c.ledger.MarkApplied(ctx, event.PaymentID)
	if err != nil {
		return nil, err
	}
	outcome := enums.OutcomeEntitlementApplied
	if !won {
		// Lost the flag race: another channel applied first. Same end state,
		// so this pass still reports success.
		outcome = enums.OutcomeAlreadyApplied
	}
	return c.finish(ctx, channel, &Result{
		PaymentID: event.PaymentID,
		Outcome:   outcome,
		Status:    event.Status,
		UserID:    &userID,
		Attempts:  attempts,
	}), nil
}

// errStillSettling signals the polling loop to go around again.
var errStillSettling = pkgerrors.New(pkgerrors.CodeDependency, "payment still settling")

// PollUntilSettled reruns Reconcile on a fixed-delay schedule until the pass
// reaches a terminal outcome or the attempt budget runs out. Returns the last
// result either way; a budget exhausted on a still-settling payment is a
// PendingRetry result, not an error.
func (c *Coordinator) PollUntilSettled(ctx context.Context, paymentID string, channel string) (*Result, error) {
	attempts := c.cfg.PollAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last *Result
	var passErrs error
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(c.cfg.PollDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.Reconcile(ctx, paymentID, channel)
		if err != nil {
			if pkgerrors.IsRetryable(err) {
				passErrs = multierr.Append(passErrs, err)
				return retry.RetryableError(err)
			}
			return err
		}
		last = result
		if result.Outcome == enums.OutcomePendingRetry {
			return retry.RetryableError(errStillSettling)
		}
		return nil
	})
	if err != nil {
		if last != nil && last.Outcome == enums.OutcomePendingRetry {
			return last, nil
		}
		return nil, multierr.Append(passErrs, err)
	}
	return last, nil
}

// VerifyPaymentLink translates a payment-link id into its underlying payment
// and reconciles it. The processor binds the payment to the link with a lag
// after checkout, so the translation itself retries on a short fixed delay.
func (c *Coordinator) VerifyPaymentLink(ctx context.Context, linkID string, channel string) (*Result, error) {
	if linkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link id required")
	}
	if c.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway not configured")
	}

	attempts := c.cfg.LinkAttempts
	if attempts < 1 {
		attempts = 1
	}

	var paymentID string
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(c.cfg.LinkDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		link, err := c.gateway.GetPaymentLink(ctx, linkID)
		if err != nil {
			if pkgerrors.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if link == nil || link.PaymentID == "" {
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency, "payment link not yet bound to a payment"))
		}
		paymentID = link.PaymentID
		return nil
	})
	if err != nil {
		if paymentID == "" && pkgerrors.IsRetryable(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no payment recorded for this link")
		}
		return nil, err
	}

	return c.Reconcile(ctx, paymentID, channel)
}

// OptimisticUpgrade applies the upgrade on the client's claim that checkout
// succeeded, before any processor confirmation lands. The claim is only
// honored for a user with a live checkout handoff, and it runs through the
// ledger under a synthetic key so repeated claims stay idempotent. The real
// payment reconciles later through its own key; the tier write converges.
func (c *Coordinator) OptimisticUpgrade(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if c.handoffs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "handoff store not configured")
	}

	handoff, err := c.handoffs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if handoff == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress for this user")
	}

	key := optimisticKey(userID, handoff.HandoffID)
	ctx = c.withLogFields(ctx, handoff.PaymentID, ChannelOptimistic)

	record, err := c.ledger.Observe(ctx, key, enums.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}
	if record.EntitlementApplied {
		return c.finish(ctx, ChannelOptimistic, &Result{
			PaymentID: handoff.PaymentID,
			Outcome:   enums.OutcomeAlreadyApplied,
			Status:    enums.PaymentStatusPaid,
			UserID:    record.ResolvedUserID,
			Attempts:  record.Attempts,
		}), nil
	}

	if _, err := c.ledger.SetResolvedUser(ctx, key, userID); err != nil {
		return nil, err
	}

	// Audit rows reference the real payment, not the synthetic ledger key.
	event := &PaymentEvent{
		PaymentID: handoff.PaymentID,
		Status:    enums.PaymentStatusPaid,
	}
	if err := c.applier.Apply(ctx, event, userID, ChannelOptimistic); err != nil {
		return nil, err
	}

	won, err := c.ledger.MarkApplied(ctx, key)
	if err != nil {
		return nil, err
	}
	outcome := enums.OutcomeEntitlementApplied
	if !won {
		outcome = enums.OutcomeAlreadyApplied
	}
	return c.finish(ctx, ChannelOptimistic, &Result{
		PaymentID: handoff.PaymentID,
		Outcome:   outcome,
		Status:    enums.PaymentStatusPaid,
		UserID:    &userID,
		Attempts:  record.Attempts,
	}), nil
}

func optimisticKey(userID uuid.UUID, handoffID uuid.UUID) string {
	return fmt.Sprintf("opt_%s_%s", userID, handoffID)
}

// advance records the status and bumps the attempt counter while it is under
// the cap. Returns the attempt count the caller should report.
func (c *Coordinator) advance(ctx context.Context, paymentID string, status enums.PaymentStatus, current int) int {
	underCap := c.cfg.MaxAttempts <= 0 || current < c.cfg.MaxAttempts
	if err := c.ledger.RecordStatus(ctx, paymentID, status, underCap); err != nil {
		c.warn(ctx, fmt.Sprintf("ledger status update failed: %v", err))
		return current
	}
	if underCap {
		return current + 1
	}
	return current
}

func (c *Coordinator) finish(ctx context.Context, channel string, result *Result) *Result {
	c.metrics.IncOutcome(channel, result.Outcome.String())
	if result.Outcome.IsTerminal() {
		c.metrics.ObserveAttempts(channel, result.Attempts)
	}
	if c.logg != nil {
		c.logg.Info(ctx, fmt.Sprintf("reconcile pass finished: %s", result.Outcome))
	}
	return result
}

func (c *Coordinator) withLogFields(ctx context.Context, paymentID string, channel string) context.Context {
	if c.logg == nil {
		return ctx
	}
	return c.logg.WithChannel(c.logg.WithPaymentID(ctx, paymentID), channel)
}

func (c *Coordinator) warn(ctx context.Context, msg string) {
	if c.logg != nil {
		c.logg.Warn(ctx, msg)
	}
}
