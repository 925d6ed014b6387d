package commands

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProcessRefundHandler_Handle(t *testing.T) {
	payerID := uuid.New()
	payeeID := uuid.New()

	setup := func(t *testing.T, ctx context.Context) (*mockContractRepo, *mockTransactionRepo, *mockGatewayClient, *mockOutboxRepo, *ProcessRefundHandler) {
		contractRepo := new(mockContractRepo)
		txRepo := new(mockTransactionRepo)
		client := new(mockGatewayClient)
		outboxRepo := new(mockOutboxRepo)
		handler := NewProcessRefundHandler(contractRepo, txRepo, client, outboxRepo, passthroughUnitOfWork(ctx), nil)
		return contractRepo, txRepo, client, outboxRepo, handler
	}

	t.Run("full refund marks transactions refunded and cancels the contract", func(t *testing.T) {
		ctx := context.Background()
		contract := inProgressContract(t, payerID, payeeID)
		deposit := contract.Stages()[0]
		tx := domain.NewFundedTransaction(contract.ID(), deposit.ID(), deposit.Name(), deposit.Amount(), "imp_123")
		tx.ClearDomainEvents()

		contractRepo, txRepo, client, outboxRepo, handler := setup(t, ctx)
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)
		txRepo.On("FindByContractAndStatus", mock.Anything, contract.ID(), domain.TransactionFunded, domain.TransactionFrozen).
			Return([]*domain.Transaction{tx}, nil)
		client.On("CancelPayment", mock.Anything, mock.MatchedBy(func(req gateway.CancelPaymentRequest) bool {
			return req.PaymentID == "imp_123" && req.Amount == nil
		})).Return(&gateway.RefundResult{RefundID: "ref_1", RefundedAmount: deposit.Amount()}, nil)
		txRepo.On("Save", mock.Anything, tx).Return(nil)
		contractRepo.On("Save", mock.Anything, contract).Return(nil)
		outboxRepo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

		result, err := handler.Handle(ctx, ProcessRefundCommand{
			ContractID:  contract.ID(),
			RequestedBy: payerID,
			Amount:      30000,
			Currency:    "KRW",
			Reason:      "service not delivered",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(30000), result.RefundedAmount)
		assert.Equal(t, 1, result.RefundedCount)
		assert.Equal(t, domain.TransactionRefunded, tx.Status())
		assert.Equal(t, domain.ContractCancelled, contract.Status())
	})

	t.Run("partial refund leaves the transaction funded", func(t *testing.T) {
		ctx := context.Background()
		contract := inProgressContract(t, payerID, payeeID)
		deposit := contract.Stages()[0]
		tx := domain.NewFundedTransaction(contract.ID(), deposit.ID(), deposit.Name(), deposit.Amount(), "imp_123")
		tx.ClearDomainEvents()

		contractRepo, txRepo, client, outboxRepo, handler := setup(t, ctx)
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)
		txRepo.On("FindByContractAndStatus", mock.Anything, contract.ID(), domain.TransactionFunded, domain.TransactionFrozen).
			Return([]*domain.Transaction{tx}, nil)
		client.On("CancelPayment", mock.Anything, mock.MatchedBy(func(req gateway.CancelPaymentRequest) bool {
			return req.Amount != nil && req.Amount.Amount() == 10000
		})).Return(&gateway.RefundResult{RefundID: "ref_2", RefundedAmount: shared.MustMoney(10000, "KRW")}, nil)
		contractRepo.On("Save", mock.Anything, contract).Return(nil)
		outboxRepo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

		result, err := handler.Handle(ctx, ProcessRefundCommand{
			ContractID:  contract.ID(),
			RequestedBy: payerID,
			Amount:      10000,
			Currency:    "KRW",
			Reason:      "partial cancellation",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(10000), result.RefundedAmount)
		assert.Equal(t, 0, result.RefundedCount)
		assert.Equal(t, domain.TransactionFunded, tx.Status())
		assert.Equal(t, domain.ContractCancelled, contract.Status())
		txRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure aborts without ledger changes", func(t *testing.T) {
		ctx := context.Background()
		contract := inProgressContract(t, payerID, payeeID)
		deposit := contract.Stages()[0]
		tx := domain.NewFundedTransaction(contract.ID(), deposit.ID(), deposit.Name(), deposit.Amount(), "imp_123")
		tx.ClearDomainEvents()

		contractRepo, txRepo, client, _, handler := setup(t, ctx)
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)
		txRepo.On("FindByContractAndStatus", mock.Anything, contract.ID(), domain.TransactionFunded, domain.TransactionFrozen).
			Return([]*domain.Transaction{tx}, nil)
		client.On("CancelPayment", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError(shared.CodeGateway, "provider timeout"))

		_, err := handler.Handle(ctx, ProcessRefundCommand{
			ContractID:  contract.ID(),
			RequestedBy: payerID,
			Amount:      30000,
			Currency:    "KRW",
		})
		require.Error(t, err)
		assert.Equal(t, shared.CodeGateway, shared.CodeOf(err))
		assert.Equal(t, domain.TransactionFunded, tx.Status())
		contractRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("outsiders get not found", func(t *testing.T) {
		ctx := context.Background()
		contract := inProgressContract(t, payerID, payeeID)

		contractRepo, _, _, _, handler := setup(t, ctx)
		contractRepo.On("FindByID", mock.Anything, contract.ID()).Return(contract, nil)

		_, err := handler.Handle(ctx, ProcessRefundCommand{
			ContractID:  contract.ID(),
			RequestedBy: uuid.New(),
			Amount:      30000,
			Currency:    "KRW",
		})
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})
}
