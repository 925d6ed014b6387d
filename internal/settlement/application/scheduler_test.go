package application

import (
	"context"
	"testing"
	"time"

	escrowDomain "github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// schedulerFixture wires a scheduler to an empty batch so runs complete
// without touching any payee.
type schedulerFixture struct {
	lock      *mockRunLock
	runRepo   *mockRunRepo
	now       time.Time
	scheduler *Scheduler
}

func newSchedulerFixture(ctx context.Context, enabled bool, at time.Time) *schedulerFixture {
	batch := newBatchFixture(ctx, testBatchConfig())
	batch.transactionRepo.On("FindReleasedWithoutPayout", mock.Anything).
		Return([]*escrowDomain.Transaction{}, nil).Maybe()
	batch.runRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SettlementRun")).
		Return(nil).Maybe()

	f := &schedulerFixture{
		lock:    new(mockRunLock),
		runRepo: batch.runRepo,
		now:     at,
	}
	f.scheduler = NewScheduler(
		batch.batch,
		f.lock,
		DefaultSchedulerConfig(),
		enabled,
		sharedApplication.ClockFunc(func() time.Time { return f.now }),
		nil,
	)
	return f
}

func (f *schedulerFixture) allowAcquire() {
	f.lock.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
}

func localTime(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.Local)
}

func TestSchedulerTick(t *testing.T) {
	ctx := context.Background()

	t.Run("fires within the window after the daily target", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(2, 3))
		f.allowAcquire()

		f.scheduler.Tick(ctx)

		f.lock.AssertNumberOfCalls(t, "Acquire", 1)
		f.runRepo.AssertNumberOfCalls(t, "Save", 1)

		status := f.scheduler.Status()
		require.NotNil(t, status.LastRunAt)
		require.NotNil(t, status.LastResult)
		assert.True(t, status.LastResult.Ran)
	})

	t.Run("does not fire outside the window", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(3, 0))

		f.scheduler.Tick(ctx)

		f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Nil(t, f.scheduler.Status().LastRunAt)
	})

	t.Run("does not fire before the target", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(1, 59))

		f.scheduler.Tick(ctx)

		f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("minimum interval suppresses a second run", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(2, 1))
		f.allowAcquire()

		f.scheduler.Tick(ctx)
		f.now = localTime(2, 4)
		f.scheduler.Tick(ctx)

		f.lock.AssertNumberOfCalls(t, "Acquire", 1)
		f.runRepo.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("lease held by another instance skips the run", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(2, 0))
		f.lock.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(false, nil)

		f.scheduler.Tick(ctx)

		f.runRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		assert.Nil(t, f.scheduler.Status().LastRunAt)
	})
}

func TestSchedulerTriggerNow(t *testing.T) {
	ctx := context.Background()

	t.Run("runs outside the daily window", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(15, 0))
		f.allowAcquire()

		require.NoError(t, f.scheduler.TriggerNow(ctx))

		f.runRepo.AssertNumberOfCalls(t, "Save", 1)
		require.NotNil(t, f.scheduler.Status().LastRunAt)
	})

	t.Run("still honors the minimum interval", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(2, 0))
		f.allowAcquire()

		f.scheduler.Tick(ctx)
		f.now = localTime(2, 30)
		require.NoError(t, f.scheduler.TriggerNow(ctx))

		f.runRepo.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("retries after a failed run inside the minimum interval", func(t *testing.T) {
		batch := newBatchFixture(ctx, testBatchConfig())
		batch.transactionRepo.On("FindReleasedWithoutPayout", mock.Anything).
			Return(nil, sharedDomain.NewDomainError(sharedDomain.CodeGateway, "ledger unavailable")).Once()
		batch.transactionRepo.On("FindReleasedWithoutPayout", mock.Anything).
			Return([]*escrowDomain.Transaction{}, nil).Once()
		batch.runRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SettlementRun")).
			Return(nil)

		f := &schedulerFixture{
			lock:    new(mockRunLock),
			runRepo: batch.runRepo,
			now:     localTime(2, 0),
		}
		f.scheduler = NewScheduler(
			batch.batch,
			f.lock,
			DefaultSchedulerConfig(),
			true,
			sharedApplication.ClockFunc(func() time.Time { return f.now }),
			nil,
		)
		f.allowAcquire()
		f.lock.On("Release", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		f.scheduler.Tick(ctx)
		assert.Nil(t, f.scheduler.Status().LastRunAt)

		// Half an hour later an operator retries; the failed run must not
		// hold the minimum interval against them.
		f.now = localTime(2, 30)
		require.NoError(t, f.scheduler.TriggerNow(ctx))

		f.lock.AssertNumberOfCalls(t, "Acquire", 2)
		f.lock.AssertNumberOfCalls(t, "Release", 1)
		require.NotNil(t, f.scheduler.Status().LastRunAt)
		assert.True(t, f.scheduler.Status().LastResult.Ran)
	})

	t.Run("rejected when settlement is disabled", func(t *testing.T) {
		f := newSchedulerFixture(ctx, false, localTime(15, 0))

		err := f.scheduler.TriggerNow(ctx)

		require.ErrorIs(t, err, domain.ErrSettlementDisabled)
		f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSchedulerStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("next run is today before the target", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(1, 0))

		status := f.scheduler.Status()

		assert.Equal(t, localTime(2, 0), status.NextRunAt)
		assert.True(t, status.Enabled)
		assert.False(t, status.IsRunning)
	})

	t.Run("next run rolls to tomorrow after the target", func(t *testing.T) {
		f := newSchedulerFixture(ctx, true, localTime(3, 0))

		status := f.scheduler.Status()

		assert.Equal(t, localTime(2, 0).AddDate(0, 0, 1), status.NextRunAt)
	})

	t.Run("disabled scheduler ignores ticks", func(t *testing.T) {
		f := newSchedulerFixture(ctx, false, localTime(2, 0))

		f.scheduler.Tick(ctx)

		f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
