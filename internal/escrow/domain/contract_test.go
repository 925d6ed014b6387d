package domain

import (
	"testing"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() ContractSpec {
	return ContractSpec{
		PayerID:        uuid.New(),
		PayeeID:        uuid.New(),
		Title:          "Wedding photography",
		TotalAmount:    sharedDomain.MustMoney(100000, "KRW"),
		FeeRateBps:     1200,
		DepositPercent: 30,
	}
}

func TestNewContract(t *testing.T) {
	t.Run("creates pending contract with deposit and final stages", func(t *testing.T) {
		c, err := NewContract(validSpec())
		require.NoError(t, err)

		assert.Equal(t, ContractPending, c.Status())
		require.Len(t, c.Stages(), 2)
		assert.Equal(t, StageDeposit, c.Stages()[0].Name())
		assert.Equal(t, int64(30000), c.Stages()[0].Amount().Amount())
		assert.Equal(t, StageFinal, c.Stages()[1].Name())
		assert.Equal(t, int64(70000), c.Stages()[1].Amount().Amount())
	})

	t.Run("fee split is computed once and adds up", func(t *testing.T) {
		c, err := NewContract(validSpec())
		require.NoError(t, err)

		assert.Equal(t, int64(12000), c.PlatformFee().Amount())
		assert.Equal(t, int64(88000), c.PayeePayout().Amount())
		assert.Equal(t, c.TotalAmount().Amount(), c.PlatformFee().Amount()+c.PayeePayout().Amount())
	})

	t.Run("stage amounts always sum to the total", func(t *testing.T) {
		amounts := []int64{1, 7, 99, 100001, 333333, 999999999}
		percents := []int{1, 13, 30, 50, 99}

		for _, amount := range amounts {
			for _, pct := range percents {
				spec := validSpec()
				spec.TotalAmount = sharedDomain.MustMoney(amount, "KRW")
				spec.DepositPercent = pct
				c, err := NewContract(spec)
				require.NoError(t, err)

				var sum int64
				for _, stage := range c.Stages() {
					sum += stage.Amount().Amount()
				}
				assert.Equal(t, amount, sum, "amount=%d pct=%d", amount, pct)
			}
		}
	})

	t.Run("supports a middle stage", func(t *testing.T) {
		spec := validSpec()
		spec.MiddlePercent = 40
		c, err := NewContract(spec)
		require.NoError(t, err)

		require.Len(t, c.Stages(), 3)
		assert.Equal(t, StageMiddle, c.Stages()[1].Name())
		assert.Equal(t, int64(30000), c.Stages()[0].Amount().Amount())
		assert.Equal(t, int64(40000), c.Stages()[1].Amount().Amount())
		assert.Equal(t, int64(30000), c.Stages()[2].Amount().Amount())
	})

	t.Run("rejects non-positive total", func(t *testing.T) {
		spec := validSpec()
		spec.TotalAmount = sharedDomain.Zero("KRW")
		_, err := NewContract(spec)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects deposit percent out of range", func(t *testing.T) {
		for _, pct := range []int{0, 100, -5} {
			spec := validSpec()
			spec.DepositPercent = pct
			_, err := NewContract(spec)
			assert.ErrorIs(t, err, ErrInvalidDepositPercent, "pct=%d", pct)
		}
	})

	t.Run("emits contract created event", func(t *testing.T) {
		c, err := NewContract(validSpec())
		require.NoError(t, err)
		require.Len(t, c.DomainEvents(), 1)
		assert.Equal(t, "escrow.contract.created", c.DomainEvents()[0].RoutingKey())
	})
}

func TestContractConfirm(t *testing.T) {
	t.Run("payee confirms pending contract", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Confirm(c.PayeeID()))

		assert.Equal(t, ContractConfirmed, c.Status())
		assert.True(t, c.PayeeAcceptedTerms())
		assert.NotNil(t, c.ConfirmedAt())
	})

	t.Run("only the named payee may confirm", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		err := c.Confirm(uuid.New())
		assert.ErrorIs(t, err, ErrContractNotFound)
		assert.Equal(t, ContractPending, c.Status())
	})

	t.Run("rejects confirm when not pending", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Confirm(c.PayeeID()))
		assert.ErrorIs(t, c.Confirm(c.PayeeID()), ErrInvalidContractState)
	})
}

func TestContractStagePayment(t *testing.T) {
	confirmed := func(t *testing.T) *Contract {
		t.Helper()
		c, err := NewContract(validSpec())
		require.NoError(t, err)
		require.NoError(t, c.Confirm(c.PayeeID()))
		return c
	}

	t.Run("paying the deposit starts the contract", func(t *testing.T) {
		c := confirmed(t)
		deposit := c.Stages()[0]

		stage, err := c.MarkStagePaid(deposit.ID(), sharedDomain.MustMoney(30000, "KRW"))
		require.NoError(t, err)

		assert.Equal(t, StagePaid, stage.Status())
		assert.NotNil(t, stage.PaidAt())
		assert.Equal(t, ContractInProgress, c.Status())
		assert.NotNil(t, c.StartedAt())
	})

	t.Run("paying the final stage does not change contract status", func(t *testing.T) {
		c := confirmed(t)
		_, err := c.MarkStagePaid(c.Stages()[0].ID(), sharedDomain.MustMoney(30000, "KRW"))
		require.NoError(t, err)

		_, err = c.MarkStagePaid(c.Stages()[1].ID(), sharedDomain.MustMoney(70000, "KRW"))
		require.NoError(t, err)
		assert.Equal(t, ContractInProgress, c.Status())
	})

	t.Run("amount mismatch leaves stage and contract untouched", func(t *testing.T) {
		c := confirmed(t)
		deposit := c.Stages()[0]

		_, err := c.MarkStagePaid(deposit.ID(), sharedDomain.MustMoney(29999, "KRW"))
		assert.ErrorIs(t, err, ErrAmountMismatch)
		assert.Equal(t, StagePending, deposit.Status())
		assert.Equal(t, ContractConfirmed, c.Status())
	})

	t.Run("rejects payment while pending", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		_, err := c.StageForPayment(c.Stages()[0].ID())
		assert.ErrorIs(t, err, ErrInvalidContractState)
	})

	t.Run("rejects payment of an already paid stage", func(t *testing.T) {
		c := confirmed(t)
		deposit := c.Stages()[0]
		_, err := c.MarkStagePaid(deposit.ID(), sharedDomain.MustMoney(30000, "KRW"))
		require.NoError(t, err)

		_, err = c.MarkStagePaid(deposit.ID(), sharedDomain.MustMoney(30000, "KRW"))
		assert.ErrorIs(t, err, ErrInvalidStageState)
	})
}

func TestContractComplete(t *testing.T) {
	inProgress := func(t *testing.T) *Contract {
		t.Helper()
		c, err := NewContract(validSpec())
		require.NoError(t, err)
		require.NoError(t, c.Confirm(c.PayeeID()))
		_, err = c.MarkStagePaid(c.Stages()[0].ID(), sharedDomain.MustMoney(30000, "KRW"))
		require.NoError(t, err)
		return c
	}

	t.Run("payer completes an in-progress contract", func(t *testing.T) {
		c := inProgress(t)
		require.NoError(t, c.Complete(c.PayerID()))
		assert.Equal(t, ContractCompleted, c.Status())
		assert.NotNil(t, c.CompletedAt())
	})

	t.Run("payee cannot complete", func(t *testing.T) {
		c := inProgress(t)
		assert.ErrorIs(t, c.Complete(c.PayeeID()), ErrContractNotFound)
	})

	t.Run("cannot complete before any payment", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Confirm(c.PayeeID()))
		assert.ErrorIs(t, c.Complete(c.PayerID()), ErrInvalidContractState)
	})
}

func TestContractDisputeAndCancel(t *testing.T) {
	t.Run("either party can dispute an active contract", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Dispute(c.PayerID(), "service not delivered"))
		assert.Equal(t, ContractDisputed, c.Status())
	})

	t.Run("stranger cannot dispute", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		assert.ErrorIs(t, c.Dispute(uuid.New(), "nope"), ErrContractNotFound)
	})

	t.Run("cancel marks pending stages canceled", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Cancel(c.PayeeID(), "schedule conflict"))

		assert.Equal(t, ContractCancelled, c.Status())
		for _, stage := range c.Stages() {
			assert.Equal(t, StageCanceled, stage.Status())
		}
	})

	t.Run("cannot cancel a completed contract", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Confirm(c.PayeeID()))
		_, err := c.MarkStagePaid(c.Stages()[0].ID(), sharedDomain.MustMoney(30000, "KRW"))
		require.NoError(t, err)
		require.NoError(t, c.Complete(c.PayerID()))

		assert.ErrorIs(t, c.Cancel(c.PayerID(), "too late"), ErrInvalidContractState)
	})

	t.Run("cancel twice is rejected", func(t *testing.T) {
		c, _ := NewContract(validSpec())
		require.NoError(t, c.Cancel(c.PayerID(), "first"))
		assert.ErrorIs(t, c.Cancel(c.PayerID(), "second"), ErrInvalidContractState)
	})
}
