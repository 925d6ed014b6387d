package commands

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// HandlePaymentCompleteCommand records a gateway-confirmed payment for a
// contract stage. It is driven by the provider webhook and must tolerate
// replays: the external reference is the idempotency key.
type HandlePaymentCompleteCommand struct {
	ContractID        uuid.UUID
	StageID           uuid.UUID
	ExternalPaymentID string
	PaidAmount        int64
	Currency          string
}

// HandlePaymentCompleteResult reports the recorded transaction. Duplicate
// is true when the event was already processed and nothing changed.
type HandlePaymentCompleteResult struct {
	TransactionID uuid.UUID
	Duplicate     bool
}

// HandlePaymentCompleteHandler handles the HandlePaymentCompleteCommand.
type HandlePaymentCompleteHandler struct {
	contractRepo    domain.ContractRepository
	transactionRepo domain.TransactionRepository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
	logger          *slog.Logger
}

// NewHandlePaymentCompleteHandler creates a new HandlePaymentCompleteHandler.
func NewHandlePaymentCompleteHandler(
	contractRepo domain.ContractRepository,
	transactionRepo domain.TransactionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *HandlePaymentCompleteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlePaymentCompleteHandler{
		contractRepo:    contractRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		uow:             uow,
		logger:          logger,
	}
}

// Handle executes the HandlePaymentCompleteCommand. A replayed webhook
// finds the already-recorded transaction and returns it unchanged; the
// unique index on (contract, stage, external reference) closes the race
// between two concurrent replays.
func (h *HandlePaymentCompleteHandler) Handle(ctx context.Context, cmd HandlePaymentCompleteCommand) (*HandlePaymentCompleteResult, error) {
	paid, err := sharedDomain.NewMoney(cmd.PaidAmount, cmd.Currency)
	if err != nil {
		return nil, sharedDomain.WrapDomainError(sharedDomain.CodeValidation, err, "invalid paid amount")
	}

	var result *HandlePaymentCompleteResult
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		existing, err := h.transactionRepo.FindByExternalReference(txCtx, cmd.ContractID, cmd.StageID, cmd.ExternalPaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			h.logger.Info("payment completion replayed",
				"contract_id", cmd.ContractID,
				"external_reference", cmd.ExternalPaymentID,
			)
			result = &HandlePaymentCompleteResult{TransactionID: existing.ID(), Duplicate: true}
			return nil
		}

		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		stage, err := contract.MarkStagePaid(cmd.StageID, paid)
		if err != nil {
			return err
		}

		tx := domain.NewFundedTransaction(contract.ID(), stage.ID(), stage.Name(), stage.Amount(), cmd.ExternalPaymentID)
		if err := h.transactionRepo.Save(txCtx, tx); err != nil {
			return err
		}
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}

		events := append(contract.DomainEvents(), tx.DomainEvents()...)
		if err := stageEvents(txCtx, h.outboxRepo, contract.PayerID(), events); err != nil {
			return err
		}

		result = &HandlePaymentCompleteResult{TransactionID: tx.ID()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
