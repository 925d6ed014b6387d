package commands

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ConfirmServiceCompleteCommand lets the payer confirm the service was
// delivered, which completes the contract and releases its funds for
// settlement.
type ConfirmServiceCompleteCommand struct {
	ContractID uuid.UUID
	PayerID    uuid.UUID
}

// ConfirmServiceCompleteHandler handles the ConfirmServiceCompleteCommand.
type ConfirmServiceCompleteHandler struct {
	contractRepo    domain.ContractRepository
	transactionRepo domain.TransactionRepository
	accountRepo     domain.AccountRepository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
}

// NewConfirmServiceCompleteHandler creates a new ConfirmServiceCompleteHandler.
func NewConfirmServiceCompleteHandler(
	contractRepo domain.ContractRepository,
	transactionRepo domain.TransactionRepository,
	accountRepo domain.AccountRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *ConfirmServiceCompleteHandler {
	return &ConfirmServiceCompleteHandler{
		contractRepo:    contractRepo,
		transactionRepo: transactionRepo,
		accountRepo:     accountRepo,
		outboxRepo:      outboxRepo,
		uow:             uow,
	}
}

// Handle executes the ConfirmServiceCompleteCommand. Every funded
// transaction of the contract moves to released with its fee fixed, and
// the payee's pending balance is credited with the net amounts so the
// settlement batch can later move them to withdrawable.
func (h *ConfirmServiceCompleteHandler) Handle(ctx context.Context, cmd ConfirmServiceCompleteCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		if err := contract.Complete(cmd.PayerID); err != nil {
			return err
		}

		funded, err := h.transactionRepo.FindByContractAndStatus(txCtx, contract.ID(), domain.TransactionFunded)
		if err != nil {
			return err
		}

		account, err := h.ensurePayeeAccount(txCtx, contract.PayeeID(), contract.TotalAmount().Currency())
		if err != nil {
			return err
		}

		events := contract.DomainEvents()
		for _, tx := range funded {
			if err := tx.Release(contract.FeeRateBps()); err != nil {
				return err
			}
			if err := account.CreditPending(tx.NetAmount()); err != nil {
				return err
			}
			if err := h.transactionRepo.Save(txCtx, tx); err != nil {
				return err
			}
			events = append(events, tx.DomainEvents()...)
		}

		if err := h.accountRepo.Save(txCtx, account); err != nil {
			return err
		}
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, cmd.PayerID, events)
	})
}

func (h *ConfirmServiceCompleteHandler) ensurePayeeAccount(ctx context.Context, payeeID uuid.UUID, currency string) (*domain.Account, error) {
	account, err := h.accountRepo.FindByUserAndRole(ctx, payeeID, domain.RolePayee)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = domain.NewAccount(payeeID, domain.RolePayee, currency)
	}
	return account, nil
}
