package commands

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// CancelContractCommand cancels a contract before completion.
type CancelContractCommand struct {
	ContractID  uuid.UUID
	CancelledBy uuid.UUID
	Reason      string
}

// CancelContractHandler handles the CancelContractCommand.
type CancelContractHandler struct {
	contractRepo domain.ContractRepository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
}

// NewCancelContractHandler creates a new CancelContractHandler.
func NewCancelContractHandler(contractRepo domain.ContractRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *CancelContractHandler {
	return &CancelContractHandler{contractRepo: contractRepo, outboxRepo: outboxRepo, uow: uow}
}

// Handle executes the CancelContractCommand. Funds already in escrow are
// untouched; returning them is the refund flow's job.
func (h *CancelContractHandler) Handle(ctx context.Context, cmd CancelContractCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		if err := contract.Cancel(cmd.CancelledBy, cmd.Reason); err != nil {
			return err
		}
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, cmd.CancelledBy, contract.DomainEvents())
	})
}
