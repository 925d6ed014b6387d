package domain

import (
	"errors"
	"testing"
	"time"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBank(t *testing.T) shared.BankDetails {
	t.Helper()
	details, ok := shared.NewBankDetails("004", "110-123-456", "Hong Gildong")
	require.True(t, ok)
	return details
}

func testPayout(t *testing.T) *Payout {
	t.Helper()
	now := time.Now().UTC()
	payout, err := NewPayout(PayoutSpec{
		PayeeID:        uuid.New(),
		PeriodStart:    now.AddDate(0, 0, -1),
		PeriodEnd:      now,
		GrossAmount:    shared.MustMoney(50000, "KRW"),
		TotalFees:      shared.MustMoney(6000, "KRW"),
		BankDetails:    testBank(t),
		TransactionIDs: []uuid.UUID{uuid.New(), uuid.New()},
	})
	require.NoError(t, err)
	return payout
}

func TestNewPayout(t *testing.T) {
	t.Run("creates a pending payout with the net amount", func(t *testing.T) {
		payout := testPayout(t)

		assert.Equal(t, PayoutPending, payout.Status())
		assert.Equal(t, int64(50000), payout.GrossAmount().Amount())
		assert.Equal(t, int64(6000), payout.TotalFees().Amount())
		assert.Equal(t, int64(44000), payout.NetAmount().Amount())
		assert.Len(t, payout.TransactionIDs(), 2)
		assert.Len(t, payout.DomainEvents(), 1)
	})

	t.Run("rejects fees at or above gross", func(t *testing.T) {
		_, err := NewPayout(PayoutSpec{
			PayeeID:     uuid.New(),
			GrossAmount: shared.MustMoney(1000, "KRW"),
			TotalFees:   shared.MustMoney(1000, "KRW"),
			BankDetails: testBank(t),
		})
		require.Error(t, err)
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	})
}

func TestPayoutLifecycle(t *testing.T) {
	t.Run("pending to processing to completed", func(t *testing.T) {
		payout := testPayout(t)

		require.NoError(t, payout.StartProcessing())
		assert.Equal(t, PayoutProcessing, payout.Status())
		assert.NotNil(t, payout.ProcessedAt())

		require.NoError(t, payout.Complete("tr_1"))
		assert.Equal(t, PayoutCompleted, payout.Status())
		assert.Equal(t, "tr_1", payout.ExternalTransferID())
		assert.NotNil(t, payout.CompletedAt())
	})

	t.Run("processing to failed keeps the reason", func(t *testing.T) {
		payout := testPayout(t)
		require.NoError(t, payout.StartProcessing())

		require.NoError(t, payout.Fail("bank rejected the account"))
		assert.Equal(t, PayoutFailed, payout.Status())
		assert.Equal(t, "bank rejected the account", payout.FailureReason())
		assert.NotNil(t, payout.FailedAt())
	})

	t.Run("hold and cancel only apply to pending payouts", func(t *testing.T) {
		payout := testPayout(t)

		require.NoError(t, payout.Hold("bank details incomplete"))
		assert.Equal(t, PayoutOnHold, payout.Status())

		err := payout.Cancel("attach failed")
		assert.True(t, errors.Is(err, ErrInvalidPayoutState))
	})

	t.Run("cannot complete without processing first", func(t *testing.T) {
		payout := testPayout(t)

		err := payout.Complete("tr_1")
		assert.True(t, errors.Is(err, ErrInvalidPayoutState))
		assert.Equal(t, PayoutPending, payout.Status())
	})
}

func TestSettlementRun(t *testing.T) {
	run := NewSettlementRun()
	assert.Nil(t, run.FinishedAt())

	run.Finish(RunResult{Ran: true, Processed: 2, TotalMoved: 94000})
	require.NotNil(t, run.FinishedAt())
	assert.Equal(t, 2, run.Result().Processed)
	assert.Equal(t, int64(94000), run.Result().TotalMoved)
}
