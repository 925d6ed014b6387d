package commands

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReleaseEscrowHandler_Handle(t *testing.T) {
	payerID := uuid.New()
	payeeID := uuid.New()

	completedContract := func(t *testing.T) *domain.Contract {
		contract := inProgressContract(t, payerID, payeeID)
		require.NoError(t, contract.Complete(payerID))
		contract.ClearDomainEvents()
		return contract
	}

	t.Run("bundles frozen funds into one pending payout", func(t *testing.T) {
		ctx := context.Background()
		contract := completedContract(t)
		deposit := contract.Stages()[0]
		tx := domain.NewFundedTransaction(contract.ID(), deposit.ID(), deposit.Name(), deposit.Amount(), "imp_123")
		require.NoError(t, tx.Freeze())
		tx.ClearDomainEvents()

		bank, ok := shared.NewBankDetails("004", "110-123", "Hong Gildong")
		require.True(t, ok)
		account := domain.NewAccount(payeeID, domain.RolePayee, "KRW")
		account.SetBankDetails(bank)

		contractRepo := new(mockContractRepo)
		txRepo := new(mockTransactionRepo)
		accountRepo := new(mockAccountRepo)
		payoutRepo := new(mockPayoutRepo)
		outboxRepo := new(mockOutboxRepo)
		handler := NewReleaseEscrowHandler(contractRepo, txRepo, accountRepo, payoutRepo, outboxRepo, passthroughUnitOfWork(ctx))

		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)
		txRepo.On("FindByContractAndStatus", mock.Anything, contract.ID(), domain.TransactionFrozen).
			Return([]*domain.Transaction{tx}, nil)
		accountRepo.On("FindByUserAndRole", mock.Anything, payeeID, domain.RolePayee).Return(account, nil)

		var savedPayout *settlementDomain.Payout
		payoutRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Payout")).
			Run(func(args mock.Arguments) { savedPayout = args.Get(1).(*settlementDomain.Payout) }).
			Return(nil)
		txRepo.On("Save", mock.Anything, tx).Return(nil)
		accountRepo.On("Save", mock.Anything, account).Return(nil)
		outboxRepo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

		result, err := handler.Handle(ctx, ReleaseEscrowCommand{ContractID: contract.ID(), ApprovedBy: payerID})
		require.NoError(t, err)

		// 30000 at 12% -> 26400 net.
		assert.Equal(t, int64(26400), result.NetAmount)
		require.NotNil(t, savedPayout)
		assert.Equal(t, settlementDomain.PayoutPending, savedPayout.Status())
		assert.Equal(t, payeeID, savedPayout.PayeeID())
		assert.Equal(t, domain.TransactionReleased, tx.Status())
		require.NotNil(t, tx.PayoutID())
		assert.Equal(t, savedPayout.ID(), *tx.PayoutID())
		assert.Equal(t, int64(26400), account.Pending().Amount())
	})

	t.Run("requires a completed contract", func(t *testing.T) {
		ctx := context.Background()
		contract := inProgressContract(t, payerID, payeeID)

		contractRepo := new(mockContractRepo)
		handler := NewReleaseEscrowHandler(contractRepo, new(mockTransactionRepo), new(mockAccountRepo), new(mockPayoutRepo), new(mockOutboxRepo), passthroughUnitOfWork(ctx))
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)

		_, err := handler.Handle(ctx, ReleaseEscrowCommand{ContractID: contract.ID(), ApprovedBy: payerID})
		assert.ErrorIs(t, err, domain.ErrInvalidContractState)
	})

	t.Run("only the payer may approve", func(t *testing.T) {
		ctx := context.Background()
		contract := completedContract(t)

		contractRepo := new(mockContractRepo)
		handler := NewReleaseEscrowHandler(contractRepo, new(mockTransactionRepo), new(mockAccountRepo), new(mockPayoutRepo), new(mockOutboxRepo), passthroughUnitOfWork(ctx))
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)

		_, err := handler.Handle(ctx, ReleaseEscrowCommand{ContractID: contract.ID(), ApprovedBy: payeeID})
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})

	t.Run("nothing frozen means nothing to release", func(t *testing.T) {
		ctx := context.Background()
		contract := completedContract(t)

		contractRepo := new(mockContractRepo)
		txRepo := new(mockTransactionRepo)
		handler := NewReleaseEscrowHandler(contractRepo, txRepo, new(mockAccountRepo), new(mockPayoutRepo), new(mockOutboxRepo), passthroughUnitOfWork(ctx))
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)
		txRepo.On("FindByContractAndStatus", mock.Anything, contract.ID(), domain.TransactionFrozen).
			Return([]*domain.Transaction{}, nil)

		_, err := handler.Handle(ctx, ReleaseEscrowCommand{ContractID: contract.ID(), ApprovedBy: payerID})
		assert.ErrorIs(t, err, domain.ErrInvalidTransactionState)
	})
}
