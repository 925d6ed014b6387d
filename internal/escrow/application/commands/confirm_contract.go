package commands

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ConfirmContractCommand lets the payee confirm a pending contract.
type ConfirmContractCommand struct {
	ContractID uuid.UUID
	PayeeID    uuid.UUID
}

// ConfirmContractHandler handles the ConfirmContractCommand.
type ConfirmContractHandler struct {
	contractRepo domain.ContractRepository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
}

// NewConfirmContractHandler creates a new ConfirmContractHandler.
func NewConfirmContractHandler(contractRepo domain.ContractRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *ConfirmContractHandler {
	return &ConfirmContractHandler{contractRepo: contractRepo, outboxRepo: outboxRepo, uow: uow}
}

// Handle executes the ConfirmContractCommand.
func (h *ConfirmContractHandler) Handle(ctx context.Context, cmd ConfirmContractCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		if err := contract.Confirm(cmd.PayeeID); err != nil {
			return err
		}
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, cmd.PayeeID, contract.DomainEvents())
	})
}
