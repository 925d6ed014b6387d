package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// SubscriptionStatus represents the current billing state.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCanceled  SubscriptionStatus = "canceled"
)

// MaxRenewalRetries is how many failed charges a subscription survives
// before it is suspended.
const MaxRenewalRetries = 3

// Subscription is a user's recurring billing agreement. Renewal is
// driven by renewsAt; a failed charge schedules a retry with a growing
// backoff, and the third failure suspends the subscription.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID             uuid.UUID
	planID             uuid.UUID
	credentialRef      string
	currentPeriodStart time.Time
	currentPeriodEnd   time.Time
	renewsAt           time.Time
	retryCount         int
	lastRetryAt        *time.Time
	nextRetryAt        *time.Time
	lastPaymentError   string
	status             SubscriptionStatus
}

// NewSubscription starts an active subscription whose first period
// begins at start and runs for the plan's interval.
func NewSubscription(userID, planID uuid.UUID, credentialRef string, start time.Time, intervalMonths int) (*Subscription, error) {
	if intervalMonths < 1 {
		return nil, ErrInvalidPlanInterval
	}
	end := start.AddDate(0, intervalMonths, 0)
	return &Subscription{
		BaseAggregateRoot:  sharedDomain.NewBaseAggregateRoot(),
		userID:             userID,
		planID:             planID,
		credentialRef:      credentialRef,
		currentPeriodStart: start,
		currentPeriodEnd:   end,
		renewsAt:           end,
		status:             SubscriptionActive,
	}, nil
}

func (s *Subscription) UserID() uuid.UUID             { return s.userID }
func (s *Subscription) PlanID() uuid.UUID             { return s.planID }
func (s *Subscription) CredentialRef() string         { return s.credentialRef }
func (s *Subscription) CurrentPeriodStart() time.Time { return s.currentPeriodStart }
func (s *Subscription) CurrentPeriodEnd() time.Time   { return s.currentPeriodEnd }
func (s *Subscription) RenewsAt() time.Time           { return s.renewsAt }
func (s *Subscription) RetryCount() int               { return s.retryCount }
func (s *Subscription) LastRetryAt() *time.Time       { return s.lastRetryAt }
func (s *Subscription) NextRetryAt() *time.Time       { return s.nextRetryAt }
func (s *Subscription) LastPaymentError() string      { return s.lastPaymentError }
func (s *Subscription) Status() SubscriptionStatus    { return s.status }

// IsRetrying reports whether a failed charge is waiting for its retry.
func (s *Subscription) IsRetrying() bool { return s.nextRetryAt != nil }

// RenewalSucceeded extends the period by the plan's interval and resets
// the retry state.
func (s *Subscription) RenewalSucceeded(intervalMonths int, amount sharedDomain.Money) error {
	if s.status != SubscriptionActive {
		return ErrInvalidSubscriptionState
	}
	s.currentPeriodStart = s.currentPeriodEnd
	s.currentPeriodEnd = s.currentPeriodEnd.AddDate(0, intervalMonths, 0)
	s.renewsAt = s.currentPeriodEnd
	s.retryCount = 0
	s.lastRetryAt = nil
	s.nextRetryAt = nil
	s.lastPaymentError = ""
	s.Touch()
	s.AddDomainEvent(NewSubscriptionRenewedEvent(s, amount))
	return nil
}

// RenewalFailed records a failed charge. Below the retry limit the next
// attempt is scheduled one more day out per attempt (+1d, +2d, +3d);
// reaching the limit suspends the subscription.
func (s *Subscription) RenewalFailed(reason string, now time.Time) error {
	if s.status != SubscriptionActive {
		return ErrInvalidSubscriptionState
	}
	s.retryCount++
	s.lastRetryAt = &now
	s.lastPaymentError = reason

	if s.retryCount >= MaxRenewalRetries {
		s.status = SubscriptionSuspended
		s.nextRetryAt = nil
		s.Touch()
		s.AddDomainEvent(NewSubscriptionSuspendedEvent(s))
		return nil
	}

	next := now.AddDate(0, 0, s.retryCount)
	s.nextRetryAt = &next
	s.Touch()
	s.AddDomainEvent(NewSubscriptionPaymentFailedEvent(s))
	return nil
}

// Cancel ends the subscription at the user's request. The current
// period stays paid through its end.
func (s *Subscription) Cancel() error {
	if s.status == SubscriptionCanceled {
		return ErrInvalidSubscriptionState
	}
	s.status = SubscriptionCanceled
	s.nextRetryAt = nil
	s.Touch()
	return nil
}

// SetCredentialRef swaps the stored payment credential.
func (s *Subscription) SetCredentialRef(ref string) {
	s.credentialRef = ref
	s.Touch()
}

// DaysUntilRenewal is the whole number of days from now to renewsAt,
// measured on calendar dates so a reminder fires once per day.
func (s *Subscription) DaysUntilRenewal(now time.Time) int {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	renewDay := time.Date(s.renewsAt.Year(), s.renewsAt.Month(), s.renewsAt.Day(), 0, 0, 0, 0, now.Location())
	return int(renewDay.Sub(nowDay).Hours() / 24)
}

// RehydrateSubscription restores a subscription from storage.
func RehydrateSubscription(
	id uuid.UUID,
	userID, planID uuid.UUID,
	credentialRef string,
	currentPeriodStart, currentPeriodEnd, renewsAt time.Time,
	retryCount int,
	lastRetryAt, nextRetryAt *time.Time,
	lastPaymentError string,
	status SubscriptionStatus,
	createdAt, updatedAt time.Time,
) *Subscription {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Subscription{
		BaseAggregateRoot:  sharedDomain.RehydrateBaseAggregateRoot(base, 0),
		userID:             userID,
		planID:             planID,
		credentialRef:      credentialRef,
		currentPeriodStart: currentPeriodStart,
		currentPeriodEnd:   currentPeriodEnd,
		renewsAt:           renewsAt,
		retryCount:         retryCount,
		lastRetryAt:        lastRetryAt,
		nextRetryAt:        nextRetryAt,
		lastPaymentError:   lastPaymentError,
		status:             status,
	}
}
