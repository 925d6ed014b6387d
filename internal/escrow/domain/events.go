package domain

import (
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateContract = "Contract"
const aggregateTransaction = "EscrowTransaction"

// ContractCreatedEvent is emitted when a new contract enters the ledger.
type ContractCreatedEvent struct {
	sharedDomain.BaseEvent
	PayerID     uuid.UUID `json:"payer_id"`
	PayeeID     uuid.UUID `json:"payee_id"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	StageCount  int       `json:"stage_count"`
}

func NewContractCreatedEvent(c *Contract) *ContractCreatedEvent {
	return &ContractCreatedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(c.ID(), aggregateContract, "escrow.contract.created"),
		PayerID:     c.PayerID(),
		PayeeID:     c.PayeeID(),
		TotalAmount: c.TotalAmount().Amount(),
		Currency:    c.TotalAmount().Currency(),
		StageCount:  len(c.Stages()),
	}
}

// ContractConfirmedEvent is emitted when the payee confirms a pending contract.
type ContractConfirmedEvent struct {
	sharedDomain.BaseEvent
	PayeeID uuid.UUID `json:"payee_id"`
}

func NewContractConfirmedEvent(contractID, payeeID uuid.UUID) *ContractConfirmedEvent {
	return &ContractConfirmedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(contractID, aggregateContract, "escrow.contract.confirmed"),
		PayeeID:   payeeID,
	}
}

// ContractStartedEvent is emitted when the deposit stage is paid.
type ContractStartedEvent struct {
	sharedDomain.BaseEvent
}

func NewContractStartedEvent(contractID uuid.UUID) *ContractStartedEvent {
	return &ContractStartedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(contractID, aggregateContract, "escrow.contract.started"),
	}
}

// ContractCompletedEvent is emitted when the payer confirms service completion.
type ContractCompletedEvent struct {
	sharedDomain.BaseEvent
}

func NewContractCompletedEvent(contractID uuid.UUID) *ContractCompletedEvent {
	return &ContractCompletedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(contractID, aggregateContract, "escrow.contract.completed"),
	}
}

// ContractDisputedEvent is emitted when either party raises a dispute.
type ContractDisputedEvent struct {
	sharedDomain.BaseEvent
	RaisedBy uuid.UUID `json:"raised_by"`
	Reason   string    `json:"reason"`
}

func NewContractDisputedEvent(contractID, raisedBy uuid.UUID, reason string) *ContractDisputedEvent {
	return &ContractDisputedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(contractID, aggregateContract, "escrow.contract.disputed"),
		RaisedBy:  raisedBy,
		Reason:    reason,
	}
}

// ContractCancelledEvent is emitted when a contract is cancelled.
type ContractCancelledEvent struct {
	sharedDomain.BaseEvent
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Reason      string    `json:"reason"`
}

func NewContractCancelledEvent(contractID, cancelledBy uuid.UUID, reason string) *ContractCancelledEvent {
	return &ContractCancelledEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(contractID, aggregateContract, "escrow.contract.cancelled"),
		CancelledBy: cancelledBy,
		Reason:      reason,
	}
}

// TransactionFundedEvent is emitted when the gateway confirms funds received.
type TransactionFundedEvent struct {
	sharedDomain.BaseEvent
	ContractID        uuid.UUID `json:"contract_id"`
	StageID           uuid.UUID `json:"stage_id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	ExternalReference string    `json:"external_reference"`
}

func NewTransactionFundedEvent(t *Transaction) *TransactionFundedEvent {
	return &TransactionFundedEvent{
		BaseEvent:         sharedDomain.NewBaseEvent(t.ID(), aggregateTransaction, "escrow.transaction.funded"),
		ContractID:        t.ContractID(),
		StageID:           t.StageID(),
		Amount:            t.Amount().Amount(),
		Currency:          t.Amount().Currency(),
		ExternalReference: t.ExternalReference(),
	}
}

// TransactionReleasedEvent is emitted when funds become eligible for settlement.
type TransactionReleasedEvent struct {
	sharedDomain.BaseEvent
	ContractID  uuid.UUID `json:"contract_id"`
	Amount      int64     `json:"amount"`
	PlatformFee int64     `json:"platform_fee"`
	Currency    string    `json:"currency"`
}

func NewTransactionReleasedEvent(t *Transaction) *TransactionReleasedEvent {
	return &TransactionReleasedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(t.ID(), aggregateTransaction, "escrow.transaction.released"),
		ContractID:  t.ContractID(),
		Amount:      t.Amount().Amount(),
		PlatformFee: t.PlatformFee().Amount(),
		Currency:    t.Amount().Currency(),
	}
}

// TransactionFrozenEvent is emitted when a dispute freezes funds.
type TransactionFrozenEvent struct {
	sharedDomain.BaseEvent
	ContractID uuid.UUID `json:"contract_id"`
}

func NewTransactionFrozenEvent(t *Transaction) *TransactionFrozenEvent {
	return &TransactionFrozenEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(t.ID(), aggregateTransaction, "escrow.transaction.frozen"),
		ContractID: t.ContractID(),
	}
}

// TransactionRefundedEvent is emitted when funds go back to the payer.
type TransactionRefundedEvent struct {
	sharedDomain.BaseEvent
	ContractID uuid.UUID `json:"contract_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
}

func NewTransactionRefundedEvent(t *Transaction) *TransactionRefundedEvent {
	return &TransactionRefundedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(t.ID(), aggregateTransaction, "escrow.transaction.refunded"),
		ContractID: t.ContractID(),
		Amount:     t.Amount().Amount(),
		Currency:   t.Amount().Currency(),
	}
}
