package commands

import (
	"context"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ProcessRefundCommand returns escrowed funds to the payer, up to the
// requested amount, and cancels the contract.
type ProcessRefundCommand struct {
	ContractID  uuid.UUID
	RequestedBy uuid.UUID
	Amount      int64
	Currency    string
	Reason      string
}

// ProcessRefundResult reports how much actually went back.
type ProcessRefundResult struct {
	RefundedAmount int64
	RefundedCount  int
}

// ProcessRefundHandler handles the ProcessRefundCommand.
type ProcessRefundHandler struct {
	contractRepo    domain.ContractRepository
	transactionRepo domain.TransactionRepository
	gatewayClient   gateway.Client
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
	logger          *slog.Logger
}

// NewProcessRefundHandler creates a new ProcessRefundHandler.
func NewProcessRefundHandler(
	contractRepo domain.ContractRepository,
	transactionRepo domain.TransactionRepository,
	gatewayClient gateway.Client,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *ProcessRefundHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessRefundHandler{
		contractRepo:    contractRepo,
		transactionRepo: transactionRepo,
		gatewayClient:   gatewayClient,
		outboxRepo:      outboxRepo,
		uow:             uow,
		logger:          logger,
	}
}

// Handle executes the ProcessRefundCommand. Transactions are walked
// oldest-first; each is refunded at the gateway for min(remaining, tx
// amount). Only a transaction refunded in full changes status, a partial
// refund leaves it in place for a later pass. The contract ends up
// cancelled either way.
func (h *ProcessRefundHandler) Handle(ctx context.Context, cmd ProcessRefundCommand) (*ProcessRefundResult, error) {
	requested, err := sharedDomain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil || requested.Amount() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *ProcessRefundResult
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil || !contract.IsParty(cmd.RequestedBy) {
			return domain.ErrContractNotFound
		}

		refundable, err := h.transactionRepo.FindByContractAndStatus(txCtx, contract.ID(),
			domain.TransactionFunded, domain.TransactionFrozen)
		if err != nil {
			return err
		}
		sort.Slice(refundable, func(i, j int) bool {
			return refundable[i].CreatedAt().Before(refundable[j].CreatedAt())
		})

		remaining := requested
		refunded := sharedDomain.Zero(requested.Currency())
		count := 0
		var events []sharedDomain.DomainEvent

		for _, tx := range refundable {
			if remaining.Amount() <= 0 {
				break
			}
			slice, err := remaining.Min(tx.Amount())
			if err != nil {
				return err
			}
			full := slice.Equals(tx.Amount())

			req := gateway.CancelPaymentRequest{
				PaymentID: tx.ExternalReference(),
				Reason:    cmd.Reason,
			}
			if !full {
				partial := slice
				req.Amount = &partial
			}
			if _, err := h.gatewayClient.CancelPayment(txCtx, req); err != nil {
				h.logger.Error("gateway refund failed",
					"contract_id", contract.ID(),
					"transaction_id", tx.ID(),
					"error", err,
				)
				return err
			}

			if full {
				if err := tx.Refund(); err != nil {
					return err
				}
				if err := h.transactionRepo.Save(txCtx, tx); err != nil {
					return err
				}
				events = append(events, tx.DomainEvents()...)
				count++
			}

			remaining, _ = remaining.Sub(slice)
			refunded, _ = refunded.Add(slice)
		}

		contract.MarkCancelled(cmd.Reason)
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		if err := stageEvents(txCtx, h.outboxRepo, cmd.RequestedBy, events); err != nil {
			return err
		}

		result = &ProcessRefundResult{RefundedAmount: refunded.Amount(), RefundedCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
