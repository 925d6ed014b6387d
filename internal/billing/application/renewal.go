package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// reminderDays are the exact day offsets before renewal that trigger a
// reminder notification.
var reminderDays = map[int]bool{7: true, 3: true, 1: true}

// RenewalResult summarizes one renewal pass.
type RenewalResult struct {
	Charged   int      `json:"charged"`
	Failed    int      `json:"failed"`
	Suspended int      `json:"suspended"`
	Reminded  int      `json:"reminded"`
	Errors    []string `json:"errors,omitempty"`
}

// Renewal charges subscriptions that are due and sends renewal
// reminders. Each subscription is handled independently; one failed
// charge never blocks the rest of the pass.
type Renewal struct {
	subscriptionRepo domain.SubscriptionRepository
	planRepo         domain.PlanRepository
	credentials      domain.CredentialResolver
	gatewayClient    gateway.Client
	outboxRepo       outbox.Repository
	uow              sharedApplication.UnitOfWork
	logger           *slog.Logger
}

// NewRenewal creates a renewal pass.
func NewRenewal(
	subscriptionRepo domain.SubscriptionRepository,
	planRepo domain.PlanRepository,
	credentials domain.CredentialResolver,
	gatewayClient gateway.Client,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *Renewal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renewal{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		credentials:      credentials,
		gatewayClient:    gatewayClient,
		outboxRepo:       outboxRepo,
		uow:              uow,
		logger:           logger,
	}
}

// Run executes one renewal pass: subscriptions renewing today that are
// not mid-retry, plus subscriptions whose retry is due, then reminders.
func (r *Renewal) Run(ctx context.Context, now time.Time) (RenewalResult, error) {
	var result RenewalResult

	due, err := r.subscriptionRepo.FindDueForRenewal(ctx, now)
	if err != nil {
		return result, err
	}
	retries, err := r.subscriptionRepo.FindDueForRetry(ctx, now)
	if err != nil {
		return result, err
	}

	for _, sub := range append(due, retries...) {
		r.renewOne(ctx, sub, now, &result)
	}

	if err := r.sendReminders(ctx, now, &result); err != nil {
		r.logger.Error("renewal reminder pass failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("reminders: %v", err))
	}

	r.logger.Info("renewal pass finished",
		"charged", result.Charged,
		"failed", result.Failed,
		"suspended", result.Suspended,
		"reminded", result.Reminded,
	)
	return result, nil
}

func (r *Renewal) renewOne(ctx context.Context, sub *domain.Subscription, now time.Time, result *RenewalResult) {
	plan, err := r.planRepo.FindByID(ctx, sub.PlanID())
	if err == nil && plan == nil {
		err = domain.ErrPlanNotFound
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscription %s: %v", sub.ID(), err))
		return
	}

	credential, err := r.resolveCredential(ctx, sub)
	if err != nil {
		r.recordFailure(ctx, sub, now, err, result)
		return
	}

	// A fresh payment id per attempt: the provider deduplicates on it,
	// and a retry is a deliberate new charge attempt.
	_, chargeErr := r.gatewayClient.CreatePaymentWithStoredCredential(ctx, gateway.CreatePaymentRequest{
		PaymentID:     uuid.NewString(),
		OrderName:     fmt.Sprintf("%s renewal", plan.Name()),
		Amount:        plan.Price(),
		CredentialRef: credential,
		Customer:      gateway.Customer{ID: sub.UserID().String()},
	})
	if chargeErr != nil {
		r.recordFailure(ctx, sub, now, chargeErr, result)
		return
	}

	if err := sub.RenewalSucceeded(plan.IntervalMonths(), plan.Price()); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscription %s: %v", sub.ID(), err))
		return
	}
	if err := r.saveWithEvents(ctx, sub); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscription %s: %v", sub.ID(), err))
		return
	}
	result.Charged++
}

func (r *Renewal) resolveCredential(ctx context.Context, sub *domain.Subscription) (string, error) {
	if ref := sub.CredentialRef(); ref != "" {
		return ref, nil
	}
	ref, err := r.credentials.DefaultCredential(ctx, sub.UserID())
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", domain.ErrNoCredential
	}
	return ref, nil
}

func (r *Renewal) recordFailure(ctx context.Context, sub *domain.Subscription, now time.Time, cause error, result *RenewalResult) {
	r.logger.Warn("renewal charge failed",
		"subscription_id", sub.ID(),
		"user_id", sub.UserID(),
		"retry_count", sub.RetryCount(),
		"error", cause,
	)
	if err := sub.RenewalFailed(cause.Error(), now); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscription %s: %v", sub.ID(), err))
		return
	}
	if err := r.saveWithEvents(ctx, sub); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("subscription %s: %v", sub.ID(), err))
		return
	}
	if sub.Status() == domain.SubscriptionSuspended {
		result.Suspended++
	} else {
		result.Failed++
	}
}

// sendReminders emits a notification for every active subscription
// renewing in exactly 7, 3 or 1 days. Reminders carry no state change,
// so a duplicate after a restart is acceptable.
func (r *Renewal) sendReminders(ctx context.Context, now time.Time, result *RenewalResult) error {
	active, err := r.subscriptionRepo.FindActive(ctx)
	if err != nil {
		return err
	}

	var events []sharedDomain.DomainEvent
	for _, sub := range active {
		if sub.IsRetrying() {
			continue
		}
		days := sub.DaysUntilRenewal(now)
		if !reminderDays[days] {
			continue
		}
		events = append(events, domain.NewRenewalReminderEvent(sub, days))
		result.Reminded++
	}
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(uuid.Nil))
	msgs := make([]*outbox.Message, 0, len(events))
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return r.outboxRepo.SaveBatch(ctx, msgs)
}

func (r *Renewal) saveWithEvents(ctx context.Context, sub *domain.Subscription) error {
	return sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		if err := r.subscriptionRepo.Save(txCtx, sub); err != nil {
			return err
		}
		events := sub.DomainEvents()
		if len(events) == 0 {
			return nil
		}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(uuid.Nil))

		msgs := make([]*outbox.Message, 0, len(events))
		for _, event := range events {
			msg, err := outbox.NewMessage(event)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		sub.ClearDomainEvents()
		return r.outboxRepo.SaveBatch(txCtx, msgs)
	})
}
