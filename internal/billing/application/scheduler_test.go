package application

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTick(t *testing.T) {
	ctx := context.Background()

	setup := func(at time.Time) (*Scheduler, *mockSubscriptionRepo, *time.Time) {
		f := newRenewalFixture(ctx)
		f.subscriptionRepo.On("FindDueForRenewal", mock.Anything, mock.Anything).
			Return([]*domain.Subscription{}, nil).Maybe()
		f.subscriptionRepo.On("FindDueForRetry", mock.Anything, mock.Anything).
			Return([]*domain.Subscription{}, nil).Maybe()
		f.subscriptionRepo.On("FindActive", mock.Anything).
			Return([]*domain.Subscription{}, nil).Maybe()

		now := at
		scheduler := NewScheduler(f.renewal, 4, sharedApplication.ClockFunc(func() time.Time { return now }), nil)
		return scheduler, f.subscriptionRepo, &now
	}

	t.Run("waits for the target hour", func(t *testing.T) {
		scheduler, repo, _ := setup(time.Date(2026, 3, 15, 3, 59, 0, 0, time.UTC))

		scheduler.Tick(ctx)

		repo.AssertNotCalled(t, "FindDueForRenewal", mock.Anything, mock.Anything)
		assert.Nil(t, scheduler.LastResult())
	})

	t.Run("runs once per day", func(t *testing.T) {
		scheduler, repo, now := setup(time.Date(2026, 3, 15, 4, 0, 0, 0, time.UTC))

		scheduler.Tick(ctx)
		*now = now.Add(time.Minute)
		scheduler.Tick(ctx)
		*now = now.Add(3 * time.Hour)
		scheduler.Tick(ctx)

		repo.AssertNumberOfCalls(t, "FindDueForRenewal", 1)
		require.NotNil(t, scheduler.LastResult())
	})

	t.Run("runs again the next day", func(t *testing.T) {
		scheduler, repo, now := setup(time.Date(2026, 3, 15, 4, 0, 0, 0, time.UTC))

		scheduler.Tick(ctx)
		*now = now.AddDate(0, 0, 1)
		scheduler.Tick(ctx)

		repo.AssertNumberOfCalls(t, "FindDueForRenewal", 2)
	})
}
