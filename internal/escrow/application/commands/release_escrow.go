package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ReleaseEscrowCommand pays out funds that were frozen during a dispute,
// after the dispute was resolved in the payee's favor and the contract
// marked completed.
type ReleaseEscrowCommand struct {
	ContractID uuid.UUID
	ApprovedBy uuid.UUID
}

// ReleaseEscrowResult reports the created payout.
type ReleaseEscrowResult struct {
	PayoutID  uuid.UUID
	NetAmount int64
}

// ReleaseEscrowHandler handles the ReleaseEscrowCommand.
type ReleaseEscrowHandler struct {
	contractRepo    domain.ContractRepository
	transactionRepo domain.TransactionRepository
	accountRepo     domain.AccountRepository
	payoutRepo      settlementDomain.PayoutRepository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
}

// NewReleaseEscrowHandler creates a new ReleaseEscrowHandler.
func NewReleaseEscrowHandler(
	contractRepo domain.ContractRepository,
	transactionRepo domain.TransactionRepository,
	accountRepo domain.AccountRepository,
	payoutRepo settlementDomain.PayoutRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *ReleaseEscrowHandler {
	return &ReleaseEscrowHandler{
		contractRepo:    contractRepo,
		transactionRepo: transactionRepo,
		accountRepo:     accountRepo,
		payoutRepo:      payoutRepo,
		outboxRepo:      outboxRepo,
		uow:             uow,
	}
}

// Handle executes the ReleaseEscrowCommand. The contract's frozen
// transactions are released with their fee fixed, bundled into one
// pending payout for the payee, and the payee's pending balance is
// credited with the net sum. The settlement batch picks the payout up on
// its next run.
func (h *ReleaseEscrowHandler) Handle(ctx context.Context, cmd ReleaseEscrowCommand) (*ReleaseEscrowResult, error) {
	var result *ReleaseEscrowResult
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		contract, err := h.contractRepo.FindByID(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}
		if contract == nil || contract.PayerID() != cmd.ApprovedBy {
			return domain.ErrContractNotFound
		}
		if contract.Status() != domain.ContractCompleted {
			return domain.ErrInvalidContractState
		}

		frozen, err := h.transactionRepo.FindByContractAndStatus(txCtx, contract.ID(), domain.TransactionFrozen)
		if err != nil {
			return err
		}
		if len(frozen) == 0 {
			return domain.ErrInvalidTransactionState
		}

		account, err := h.accountRepo.FindByUserAndRole(txCtx, contract.PayeeID(), domain.RolePayee)
		if err != nil {
			return err
		}
		if account == nil {
			account = domain.NewAccount(contract.PayeeID(), domain.RolePayee, contract.TotalAmount().Currency())
		}

		currency := contract.TotalAmount().Currency()
		gross := sharedDomain.Zero(currency)
		fees := sharedDomain.Zero(currency)
		periodStart := time.Now().UTC()
		txIDs := make([]uuid.UUID, 0, len(frozen))
		var events []sharedDomain.DomainEvent
		for _, tx := range frozen {
			if err := tx.Release(contract.FeeRateBps()); err != nil {
				return err
			}
			gross, err = gross.Add(tx.Amount())
			if err != nil {
				return err
			}
			fees, err = fees.Add(tx.PlatformFee())
			if err != nil {
				return err
			}
			if tx.CreatedAt().Before(periodStart) {
				periodStart = tx.CreatedAt()
			}
			txIDs = append(txIDs, tx.ID())
			events = append(events, tx.DomainEvents()...)
		}

		payout, err := settlementDomain.NewPayout(settlementDomain.PayoutSpec{
			PayeeID:        contract.PayeeID(),
			PeriodStart:    periodStart,
			PeriodEnd:      time.Now().UTC(),
			GrossAmount:    gross,
			TotalFees:      fees,
			BankDetails:    account.BankDetails(),
			TransactionIDs: txIDs,
		})
		if err != nil {
			return err
		}
		net := payout.NetAmount()
		for _, tx := range frozen {
			if err := tx.AttachToPayout(payout.ID()); err != nil {
				return err
			}
			if err := h.transactionRepo.Save(txCtx, tx); err != nil {
				return err
			}
		}

		if err := account.CreditPending(net); err != nil {
			return err
		}

		if err := h.payoutRepo.Save(txCtx, payout); err != nil {
			return err
		}
		if err := h.accountRepo.Save(txCtx, account); err != nil {
			return err
		}
		events = append(events, payout.DomainEvents()...)
		if err := stageEvents(txCtx, h.outboxRepo, cmd.ApprovedBy, events); err != nil {
			return err
		}

		result = &ReleaseEscrowResult{PayoutID: payout.ID(), NetAmount: net.Amount()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
