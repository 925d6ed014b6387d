package commands

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// AcceptTermsCommand records the payer's terms acknowledgement.
type AcceptTermsCommand struct {
	ContractID uuid.UUID
	PayerID    uuid.UUID
}

// AcceptTermsHandler handles the AcceptTermsCommand.
type AcceptTermsHandler struct {
	contractRepo domain.ContractRepository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
}

// NewAcceptTermsHandler creates a new AcceptTermsHandler.
func NewAcceptTermsHandler(contractRepo domain.ContractRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *AcceptTermsHandler {
	return &AcceptTermsHandler{contractRepo: contractRepo, outboxRepo: outboxRepo, uow: uow}
}

// Handle executes the AcceptTermsCommand.
func (h *AcceptTermsHandler) Handle(ctx context.Context, cmd AcceptTermsCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		if err := contract.AcceptTerms(cmd.PayerID); err != nil {
			return err
		}
		return h.contractRepo.Save(txCtx, contract)
	})
}
