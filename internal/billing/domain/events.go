package domain

import (
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateSubscription = "Subscription"

// SubscriptionRenewedEvent is emitted after a successful renewal charge.
type SubscriptionRenewedEvent struct {
	sharedDomain.BaseEvent
	UserID       uuid.UUID `json:"user_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	NewPeriodEnd string    `json:"new_period_end"`
}

func NewSubscriptionRenewedEvent(s *Subscription, amount sharedDomain.Money) *SubscriptionRenewedEvent {
	return &SubscriptionRenewedEvent{
		BaseEvent:    sharedDomain.NewBaseEvent(s.ID(), aggregateSubscription, "billing.subscription.renewed"),
		UserID:       s.UserID(),
		PlanID:       s.PlanID(),
		Amount:       amount.Amount(),
		Currency:     amount.Currency(),
		NewPeriodEnd: s.CurrentPeriodEnd().Format("2006-01-02"),
	}
}

// SubscriptionPaymentFailedEvent is emitted when a renewal charge fails
// but a retry is still scheduled.
type SubscriptionPaymentFailedEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID `json:"user_id"`
	RetryCount int       `json:"retry_count"`
	Reason     string    `json:"reason"`
}

func NewSubscriptionPaymentFailedEvent(s *Subscription) *SubscriptionPaymentFailedEvent {
	return &SubscriptionPaymentFailedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(s.ID(), aggregateSubscription, "billing.subscription.payment_failed"),
		UserID:     s.UserID(),
		RetryCount: s.RetryCount(),
		Reason:     s.LastPaymentError(),
	}
}

// SubscriptionSuspendedEvent is emitted when the retry limit is reached.
type SubscriptionSuspendedEvent struct {
	sharedDomain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

func NewSubscriptionSuspendedEvent(s *Subscription) *SubscriptionSuspendedEvent {
	return &SubscriptionSuspendedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), aggregateSubscription, "billing.subscription.suspended"),
		UserID:    s.UserID(),
		Reason:    s.LastPaymentError(),
	}
}

// RenewalReminderEvent is an informational notice sent days before the
// next charge. Duplicate reminders are harmless.
type RenewalReminderEvent struct {
	sharedDomain.BaseEvent
	UserID   uuid.UUID `json:"user_id"`
	DaysLeft int       `json:"days_left"`
	RenewsAt string    `json:"renews_at"`
}

func NewRenewalReminderEvent(s *Subscription, daysLeft int) *RenewalReminderEvent {
	return &RenewalReminderEvent{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), aggregateSubscription, "billing.subscription.renewal_reminder"),
		UserID:    s.UserID(),
		DaysLeft:  daysLeft,
		RenewsAt:  s.RenewsAt().Format("2006-01-02"),
	}
}
