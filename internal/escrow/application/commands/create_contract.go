package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// DefaultDepositPercent applies when the payer does not choose a split.
const DefaultDepositPercent = 30

// CreateContractCommand contains the data needed to open an escrow
// contract between a payer and a payee.
type CreateContractCommand struct {
	PayerID            uuid.UUID
	PayeeID            uuid.UUID
	Title              string
	Description        string
	TotalAmount        int64
	Currency           string
	DepositPercent     int // 0 means DefaultDepositPercent
	MiddlePercent      int
	CancellationPolicy string
	ServiceDate        *time.Time
	ServiceLocation    string
}

// CreateContractResult contains the created contract's identity and the
// computed fee split.
type CreateContractResult struct {
	ContractID  uuid.UUID
	PlatformFee int64
	PayeePayout int64
	StageIDs    []uuid.UUID
}

// CreateContractHandler handles the CreateContractCommand.
type CreateContractHandler struct {
	contractRepo domain.ContractRepository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	feeRateBps   int
}

// NewCreateContractHandler creates a new CreateContractHandler. The fee
// rate is fixed per deployment, not per contract.
func NewCreateContractHandler(contractRepo domain.ContractRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, feeRateBps int) *CreateContractHandler {
	return &CreateContractHandler{
		contractRepo: contractRepo,
		outboxRepo:   outboxRepo,
		uow:          uow,
		feeRateBps:   feeRateBps,
	}
}

// Handle executes the CreateContractCommand.
func (h *CreateContractHandler) Handle(ctx context.Context, cmd CreateContractCommand) (*CreateContractResult, error) {
	total, err := sharedDomain.NewMoney(cmd.TotalAmount, cmd.Currency)
	if err != nil {
		return nil, sharedDomain.WrapDomainError(sharedDomain.CodeValidation, err, "invalid total amount")
	}
	depositPercent := cmd.DepositPercent
	if depositPercent == 0 {
		depositPercent = DefaultDepositPercent
	}

	contract, err := domain.NewContract(domain.ContractSpec{
		PayerID:            cmd.PayerID,
		PayeeID:            cmd.PayeeID,
		Title:              cmd.Title,
		Description:        cmd.Description,
		TotalAmount:        total,
		FeeRateBps:         h.feeRateBps,
		DepositPercent:     depositPercent,
		MiddlePercent:      cmd.MiddlePercent,
		CancellationPolicy: domain.CancellationPolicy(cmd.CancellationPolicy),
		ServiceDate:        cmd.ServiceDate,
		ServiceLocation:    cmd.ServiceLocation,
	})
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.contractRepo.Save(txCtx, contract); err != nil {
			return err
		}
		return stageEvents(txCtx, h.outboxRepo, cmd.PayerID, contract.DomainEvents())
	})
	if err != nil {
		return nil, err
	}

	stageIDs := make([]uuid.UUID, 0, len(contract.Stages()))
	for _, stage := range contract.Stages() {
		stageIDs = append(stageIDs, stage.ID())
	}
	return &CreateContractResult{
		ContractID:  contract.ID(),
		PlatformFee: contract.PlatformFee().Amount(),
		PayeePayout: contract.PayeePayout().Amount(),
		StageIDs:    stageIDs,
	}, nil
}
