package commands

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// RaiseDisputeCommand freezes a contract and its funds while the parties
// disagree.
type RaiseDisputeCommand struct {
	ContractID uuid.UUID
	RaisedBy   uuid.UUID
	Reason     string
}

// RaiseDisputeHandler handles the RaiseDisputeCommand.
type RaiseDisputeHandler struct {
	contractRepo    domain.ContractRepository
	transactionRepo domain.TransactionRepository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
}

// NewRaiseDisputeHandler creates a new RaiseDisputeHandler.
func NewRaiseDisputeHandler(
	contractRepo domain.ContractRepository,
	transactionRepo domain.TransactionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *RaiseDisputeHandler {
	return &RaiseDisputeHandler{
		contractRepo:    contractRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		uow:             uow,
	}
}

// Handle executes the RaiseDisputeCommand. All non-terminal transactions
// of the contract are frozen so neither settlement nor refunds touch
// them until the dispute is resolved.
func (h *RaiseDisputeHandler) Handle(ctx context.Context, cmd RaiseDisputeCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		if err := contract.Dispute(cmd.RaisedBy, cmd.Reason); err != nil {
			return err
		}

		transactions, err := h.transactionRepo.FindByContract(txCtx, contract.ID())
		if err != nil {
			return err
		}

		events := contract.DomainEvents()
		for _, tx := range transactions {
			if tx.IsTerminal() || tx.Status() == domain.TransactionFrozen {
				continue
			}
			if err := tx.Freeze(); err != nil {
				return err
			}
			if err := h.transactionRepo.Save(txCtx, tx); err != nil {
				return err
			}
			events = append(events, tx.DomainEvents()...)
		}

		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, cmd.RaisedBy, events)
	})
}
