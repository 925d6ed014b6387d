package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionRepository persists subscriptions.
// Find* return nil when no matching subscription exists.
type SubscriptionRepository interface {
	Save(ctx context.Context, subscription *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// FindDueForRenewal returns active subscriptions whose renewal date
	// falls on the given day and that are not waiting on a retry.
	FindDueForRenewal(ctx context.Context, day time.Time) ([]*Subscription, error)
	// FindDueForRetry returns active subscriptions whose scheduled retry
	// time has passed.
	FindDueForRetry(ctx context.Context, now time.Time) ([]*Subscription, error)
	// FindActive returns every active subscription, for the reminder pass.
	FindActive(ctx context.Context) ([]*Subscription, error)
}

// PlanRepository persists billing plans.
type PlanRepository interface {
	Save(ctx context.Context, plan *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
}

// CredentialResolver looks up a user's default stored payment
// credential, used when the subscription itself has none.
type CredentialResolver interface {
	DefaultCredential(ctx context.Context, userID uuid.UUID) (string, error)
}
