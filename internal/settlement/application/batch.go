package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	escrowDomain "github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// BatchConfig controls one settlement batch.
type BatchConfig struct {
	// Enabled gates the whole batch; a disabled batch performs no writes.
	Enabled bool

	// MinimumPayout is the smallest net amount worth a bank transfer.
	MinimumPayout int64
	Currency      string
}

// payeeGroup is one payee's share of a settlement run.
type payeeGroup struct {
	payeeID      uuid.UUID
	account      *escrowDomain.Account
	transactions []*escrowDomain.Transaction
	gross        sharedDomain.Money
	fees         sharedDomain.Money
	net          sharedDomain.Money
	periodStart  time.Time
	periodEnd    time.Time
}

// Batch converts released-but-unpaid escrow transactions into bank
// transfers. Each payee group is an independent unit of work: one group's
// failure is recorded in the run result and never blocks the others.
type Batch struct {
	transactionRepo escrowDomain.TransactionRepository
	contractRepo    escrowDomain.ContractRepository
	accountRepo     escrowDomain.AccountRepository
	payoutRepo      domain.PayoutRepository
	runRepo         domain.RunRepository
	gatewayClient   gateway.Client
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
	logger          *slog.Logger
	config          BatchConfig
}

// NewBatch creates a settlement batch.
func NewBatch(
	transactionRepo escrowDomain.TransactionRepository,
	contractRepo escrowDomain.ContractRepository,
	accountRepo escrowDomain.AccountRepository,
	payoutRepo domain.PayoutRepository,
	runRepo domain.RunRepository,
	gatewayClient gateway.Client,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	config BatchConfig,
) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{
		transactionRepo: transactionRepo,
		contractRepo:    contractRepo,
		accountRepo:     accountRepo,
		payoutRepo:      payoutRepo,
		runRepo:         runRepo,
		gatewayClient:   gatewayClient,
		outboxRepo:      outboxRepo,
		uow:             uow,
		logger:          logger,
		config:          config,
	}
}

// Run executes one settlement batch and persists its run record.
func (b *Batch) Run(ctx context.Context) (domain.RunResult, error) {
	if !b.config.Enabled {
		b.logger.Info("settlement disabled, skipping run")
		return domain.RunResult{Ran: false}, nil
	}

	run := domain.NewSettlementRun()
	result := domain.RunResult{Ran: true, Currency: b.config.Currency}

	groups, err := b.collectGroups(ctx, &result)
	if err != nil {
		// Close out the run record so the aborted run is visible.
		result.Errors = append(result.Errors, err.Error())
		run.Finish(result)
		if saveErr := b.runRepo.Save(ctx, run); saveErr != nil {
			b.logger.Error("failed to persist settlement run", "error", saveErr)
		}
		return result, err
	}

	for _, group := range groups {
		b.settleGroup(ctx, group, &result)
	}

	run.Finish(result)
	if err := b.runRepo.Save(ctx, run); err != nil {
		b.logger.Error("failed to persist settlement run", "error", err)
	}

	b.logger.Info("settlement run finished",
		"processed", result.Processed,
		"skipped_kyc", result.SkippedKyc,
		"below_min", result.BelowMin,
		"failed", result.Failed,
		"total_moved", result.TotalMoved,
	)
	return result, nil
}

// collectGroups lists settlement candidates, groups them by payee and
// partitions the groups into eligible, skippedKyc and belowMin. Every
// group lands in exactly one bucket; only eligible groups are returned.
func (b *Batch) collectGroups(ctx context.Context, result *domain.RunResult) ([]*payeeGroup, error) {
	released, err := b.transactionRepo.FindReleasedWithoutPayout(ctx)
	if err != nil {
		return nil, err
	}
	if len(released) == 0 {
		return nil, nil
	}

	contracts := make(map[uuid.UUID]*escrowDomain.Contract)
	groups := make(map[uuid.UUID]*payeeGroup)
	var order []uuid.UUID

	for _, tx := range released {
		contract, ok := contracts[tx.ContractID()]
		if !ok {
			contract, err = b.contractRepo.FindByID(ctx, tx.ContractID())
			if err != nil {
				return nil, err
			}
			if contract == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("transaction %s references missing contract %s", tx.ID(), tx.ContractID()))
				continue
			}
			contracts[tx.ContractID()] = contract
		}

		payeeID := contract.PayeeID()
		group, ok := groups[payeeID]
		if !ok {
			group = &payeeGroup{
				payeeID:     payeeID,
				gross:       sharedDomain.Zero(tx.Amount().Currency()),
				fees:        sharedDomain.Zero(tx.Amount().Currency()),
				net:         sharedDomain.Zero(tx.Amount().Currency()),
				periodStart: tx.CreatedAt(),
				periodEnd:   tx.CreatedAt(),
			}
			groups[payeeID] = group
			order = append(order, payeeID)
		}

		group.transactions = append(group.transactions, tx)
		if group.gross, err = group.gross.Add(tx.Amount()); err != nil {
			return nil, err
		}
		if group.fees, err = group.fees.Add(tx.PlatformFee()); err != nil {
			return nil, err
		}
		if group.net, err = group.net.Add(tx.NetAmount()); err != nil {
			return nil, err
		}
		if tx.CreatedAt().Before(group.periodStart) {
			group.periodStart = tx.CreatedAt()
		}
		if tx.CreatedAt().After(group.periodEnd) {
			group.periodEnd = tx.CreatedAt()
		}
	}

	var eligible []*payeeGroup
	for _, payeeID := range order {
		group := groups[payeeID]

		account, err := b.accountRepo.FindByUserAndRole(ctx, payeeID, escrowDomain.RolePayee)
		if err != nil {
			return nil, err
		}
		if account == nil || !account.IsVerified() {
			result.SkippedKyc++
			continue
		}
		if group.net.Amount() < b.config.MinimumPayout {
			result.BelowMin++
			continue
		}

		group.account = account
		eligible = append(eligible, group)
	}
	return eligible, nil
}

// settleGroup drives one payee group through create, attach and process.
// Any failure is recorded in the result; the batch moves on.
func (b *Batch) settleGroup(ctx context.Context, group *payeeGroup, result *domain.RunResult) {
	payout, err := b.createAndAttach(ctx, group)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("payee %s: %v", group.payeeID, err))
		return
	}

	if err := b.processPayout(ctx, payout, group); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("payout %s: %v", payout.ID(), err))
		return
	}

	result.PayoutIDs = append(result.PayoutIDs, payout.ID())
	if payout.Status() == domain.PayoutOnHold {
		// Held, not moved. The payout stays for a manual retry once the
		// payee completes their bank details.
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("payout %s: %s", payout.ID(), payout.FailureReason()))
		return
	}

	result.Processed++
	result.TotalMoved += payout.NetAmount().Amount()
}

// createAndAttach persists a pending payout and links its transactions.
// If the attach step fails the payout is cancelled so no partial state is
// left behind for the next run.
func (b *Batch) createAndAttach(ctx context.Context, group *payeeGroup) (*domain.Payout, error) {
	txIDs := make([]uuid.UUID, 0, len(group.transactions))
	for _, tx := range group.transactions {
		txIDs = append(txIDs, tx.ID())
	}

	payout, err := domain.NewPayout(domain.PayoutSpec{
		PayeeID:        group.payeeID,
		PeriodStart:    group.periodStart,
		PeriodEnd:      group.periodEnd,
		GrossAmount:    group.gross,
		TotalFees:      group.fees,
		BankDetails:    group.account.BankDetails(),
		TransactionIDs: txIDs,
	})
	if err != nil {
		return nil, err
	}

	if err := b.savePayout(ctx, payout); err != nil {
		return nil, err
	}

	attachErr := sharedApplication.WithUnitOfWork(ctx, b.uow, func(txCtx context.Context) error {
		for _, tx := range group.transactions {
			if err := tx.AttachToPayout(payout.ID()); err != nil {
				return err
			}
			if err := b.transactionRepo.Save(txCtx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if attachErr != nil {
		for _, tx := range group.transactions {
			if tx.PayoutID() != nil {
				tx.DetachFromPayout()
			}
		}
		if cancelErr := payout.Cancel(fmt.Sprintf("attach failed: %v", attachErr)); cancelErr == nil {
			if err := b.savePayout(ctx, payout); err != nil {
				b.logger.Error("failed to persist cancelled payout", "payout_id", payout.ID(), "error", err)
			}
		}
		return nil, attachErr
	}
	return payout, nil
}

// processPayout validates bank details, calls the transfer and settles
// the payee's balance. A failed transfer detaches the transactions so a
// future run retries them.
func (b *Batch) processPayout(ctx context.Context, payout *domain.Payout, group *payeeGroup) error {
	if !payout.BankDetails().IsComplete() {
		if err := payout.Hold("payee has no complete bank details"); err != nil {
			return err
		}
		return b.savePayout(ctx, payout)
	}

	if err := payout.StartProcessing(); err != nil {
		return err
	}
	if err := b.savePayout(ctx, payout); err != nil {
		return err
	}

	transfer, transferErr := b.gatewayClient.TransferToBank(ctx, gateway.TransferRequest{
		Amount:      payout.NetAmount(),
		BankDetails: payout.BankDetails(),
		Reason:      fmt.Sprintf("settlement %s", payout.ScheduledAt().Format("2006-01-02")),
	})
	if transferErr != nil {
		b.logger.Error("bank transfer failed",
			"payout_id", payout.ID(),
			"payee_id", payout.PayeeID(),
			"error", transferErr,
		)
		if err := payout.Fail(transferErr.Error()); err != nil {
			return err
		}
		err := sharedApplication.WithUnitOfWork(ctx, b.uow, func(txCtx context.Context) error {
			for _, tx := range group.transactions {
				tx.DetachFromPayout()
				if err := b.transactionRepo.Save(txCtx, tx); err != nil {
					return err
				}
			}
			if err := b.payoutRepo.Save(txCtx, payout); err != nil {
				return err
			}
			return b.stagePayoutEvents(txCtx, payout)
		})
		if err != nil {
			return err
		}
		// The failure state is persisted; the transfer still failed, and the
		// caller must count it that way.
		return transferErr
	}

	return sharedApplication.WithUnitOfWork(ctx, b.uow, func(txCtx context.Context) error {
		if err := payout.Complete(transfer.TransferID); err != nil {
			return err
		}

		// Settled funds follow the only legal balance flow: the pending
		// bucket drains through withdrawable and out of the account.
		if err := group.account.SettlePending(payout.NetAmount()); err != nil {
			return err
		}
		if err := group.account.Withdraw(payout.NetAmount()); err != nil {
			return err
		}

		if err := b.accountRepo.Save(txCtx, group.account); err != nil {
			return err
		}
		if err := b.payoutRepo.Save(txCtx, payout); err != nil {
			return err
		}
		return b.stagePayoutEvents(txCtx, payout)
	})
}

func (b *Batch) savePayout(ctx context.Context, payout *domain.Payout) error {
	return sharedApplication.WithUnitOfWork(ctx, b.uow, func(txCtx context.Context) error {
		if err := b.payoutRepo.Save(txCtx, payout); err != nil {
			return err
		}
		return b.stagePayoutEvents(txCtx, payout)
	})
}

func (b *Batch) stagePayoutEvents(ctx context.Context, payout *domain.Payout) error {
	events := payout.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(uuid.Nil))

	msgs := make([]*outbox.Message, 0, len(events))
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	payout.ClearDomainEvents()
	return b.outboxRepo.SaveBatch(ctx, msgs)
}
