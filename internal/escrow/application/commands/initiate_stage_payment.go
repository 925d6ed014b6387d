package commands

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/google/uuid"
)

// InitiateStagePaymentCommand prepares a stage for checkout.
type InitiateStagePaymentCommand struct {
	ContractID uuid.UUID
	StageID    uuid.UUID
	PayerID    uuid.UUID
}

// InitiateStagePaymentResult carries what the payment page needs. Nothing
// is written to the ledger until the gateway confirms the funds.
type InitiateStagePaymentResult struct {
	PaymentReference string
	OrderName        string
	Amount           int64
	Currency         string
}

// InitiateStagePaymentHandler handles the InitiateStagePaymentCommand.
type InitiateStagePaymentHandler struct {
	contractRepo domain.ContractRepository
}

// NewInitiateStagePaymentHandler creates a new InitiateStagePaymentHandler.
func NewInitiateStagePaymentHandler(contractRepo domain.ContractRepository) *InitiateStagePaymentHandler {
	return &InitiateStagePaymentHandler{contractRepo: contractRepo}
}

// Handle executes the InitiateStagePaymentCommand.
func (h *InitiateStagePaymentHandler) Handle(ctx context.Context, cmd InitiateStagePaymentCommand) (*InitiateStagePaymentResult, error) {
	contract, err := h.contractRepo.FindByID(ctx, cmd.ContractID)
	if err != nil {
		return nil, err
	}
	if contract == nil || contract.PayerID() != cmd.PayerID {
		return nil, domain.ErrContractNotFound
	}

	stage, err := contract.StageForPayment(cmd.StageID)
	if err != nil {
		return nil, err
	}

	// The reference encodes contract and stage so the webhook can route
	// the completion back without extra lookups.
	reference := fmt.Sprintf("escrow_%s_%s", contract.ID(), stage.ID())
	return &InitiateStagePaymentResult{
		PaymentReference: reference,
		OrderName:        fmt.Sprintf("%s (%s)", contract.Title(), stage.Name()),
		Amount:           stage.Amount().Amount(),
		Currency:         stage.Amount().Currency(),
	}, nil
}
