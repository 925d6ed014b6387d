package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// TransactionStatus represents the state of one funds-in event.
// The canonical sequence for a settling transaction is
// pending -> funded -> released, with frozen and refunded as side exits.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionFunded   TransactionStatus = "funded"
	TransactionReleased TransactionStatus = "released"
	TransactionRefunded TransactionStatus = "refunded"
	TransactionFrozen   TransactionStatus = "frozen"
)

// Transaction records one actual funds-in event against a contract stage.
// It is created only after the gateway confirmed receipt of funds, never
// speculatively. The amount always equals the originating stage's amount.
type Transaction struct {
	sharedDomain.BaseAggregateRoot
	contractID        uuid.UUID
	stageID           uuid.UUID
	milestone         StageName
	amount            sharedDomain.Money
	status            TransactionStatus
	externalReference string
	platformFee       sharedDomain.Money
	payoutID          *uuid.UUID
	fundedAt          *time.Time
	releasedAt        *time.Time
	refundedAt        *time.Time
}

// NewFundedTransaction records a gateway-confirmed payment for a stage.
func NewFundedTransaction(contractID, stageID uuid.UUID, milestone StageName, amount sharedDomain.Money, externalReference string) *Transaction {
	now := time.Now().UTC()
	tx := &Transaction{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		contractID:        contractID,
		stageID:           stageID,
		milestone:         milestone,
		amount:            amount,
		status:            TransactionFunded,
		externalReference: externalReference,
		platformFee:       sharedDomain.Zero(amount.Currency()),
		fundedAt:          &now,
	}
	tx.AddDomainEvent(NewTransactionFundedEvent(tx))
	return tx
}

func (t *Transaction) ContractID() uuid.UUID           { return t.contractID }
func (t *Transaction) StageID() uuid.UUID              { return t.stageID }
func (t *Transaction) Milestone() StageName            { return t.milestone }
func (t *Transaction) Amount() sharedDomain.Money      { return t.amount }
func (t *Transaction) Status() TransactionStatus       { return t.status }
func (t *Transaction) ExternalReference() string       { return t.externalReference }
func (t *Transaction) PlatformFee() sharedDomain.Money { return t.platformFee }
func (t *Transaction) PayoutID() *uuid.UUID            { return t.payoutID }
func (t *Transaction) FundedAt() *time.Time            { return t.fundedAt }
func (t *Transaction) ReleasedAt() *time.Time          { return t.releasedAt }
func (t *Transaction) RefundedAt() *time.Time          { return t.refundedAt }

// NetAmount is what the payee receives for this transaction once settled.
func (t *Transaction) NetAmount() sharedDomain.Money {
	net, err := t.amount.Sub(t.platformFee)
	if err != nil {
		return sharedDomain.Zero(t.amount.Currency())
	}
	return net
}

// IsTerminal reports whether the transaction can no longer move.
func (t *Transaction) IsTerminal() bool {
	return t.status == TransactionRefunded
}

// Release moves a funded or frozen transaction to released and fixes the
// platform fee at the given rate. Frozen transactions release when a
// dispute is resolved in the payee's favor. Settlement only ever picks up
// released transactions.
func (t *Transaction) Release(feeRateBps int) error {
	if t.status != TransactionFunded && t.status != TransactionFrozen {
		return ErrInvalidTransactionState
	}
	fee, _, err := t.amount.FeeAt(feeRateBps)
	if err != nil {
		return sharedDomain.WrapDomainError(sharedDomain.CodeValidation, err, "invalid fee rate")
	}

	now := time.Now().UTC()
	t.status = TransactionReleased
	t.platformFee = fee
	t.releasedAt = &now
	t.Touch()

	t.AddDomainEvent(NewTransactionReleasedEvent(t))
	return nil
}

// Freeze suspends a non-terminal transaction during a dispute.
func (t *Transaction) Freeze() error {
	if t.IsTerminal() || t.status == TransactionFrozen {
		return ErrInvalidTransactionState
	}
	t.status = TransactionFrozen
	t.Touch()

	t.AddDomainEvent(NewTransactionFrozenEvent(t))
	return nil
}

// Refund marks the transaction fully refunded. Only funded or frozen
// transactions can be refunded.
func (t *Transaction) Refund() error {
	if t.status != TransactionFunded && t.status != TransactionFrozen {
		return ErrInvalidTransactionState
	}
	now := time.Now().UTC()
	t.status = TransactionRefunded
	t.refundedAt = &now
	t.Touch()

	t.AddDomainEvent(NewTransactionRefundedEvent(t))
	return nil
}

// AttachToPayout links the transaction to a payout. A transaction is
// attached to at most one payout over its lifetime; the link is cleared
// again if the payout fails so a future run can pick the transaction up.
func (t *Transaction) AttachToPayout(payoutID uuid.UUID) error {
	if t.status != TransactionReleased {
		return ErrInvalidTransactionState
	}
	if t.payoutID != nil {
		return ErrInvalidTransactionState
	}
	t.payoutID = &payoutID
	t.Touch()
	return nil
}

// DetachFromPayout clears the payout link after a failed transfer.
func (t *Transaction) DetachFromPayout() {
	t.payoutID = nil
	t.Touch()
}

// RehydrateTransaction recreates a transaction from persisted state.
func RehydrateTransaction(
	id, contractID, stageID uuid.UUID,
	milestone StageName,
	amount sharedDomain.Money,
	status TransactionStatus,
	externalReference string,
	platformFee sharedDomain.Money,
	payoutID *uuid.UUID,
	fundedAt, releasedAt, refundedAt *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) *Transaction {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Transaction{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base, version),
		contractID:        contractID,
		stageID:           stageID,
		milestone:         milestone,
		amount:            amount,
		status:            status,
		externalReference: externalReference,
		platformFee:       platformFee,
		payoutID:          payoutID,
		fundedAt:          fundedAt,
		releasedAt:        releasedAt,
		refundedAt:        refundedAt,
	}
}
