package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// PayoutStatus is the lifecycle state of a payout.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutOnHold     PayoutStatus = "on_hold"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// Payout aggregates released escrow transactions for one payee into a
// single bank transfer. Bank details are snapshotted at creation time so
// a later change to the account does not redirect an in-flight payout.
type Payout struct {
	sharedDomain.BaseAggregateRoot
	payeeID            uuid.UUID
	periodStart        time.Time
	periodEnd          time.Time
	grossAmount        sharedDomain.Money
	totalFees          sharedDomain.Money
	netAmount          sharedDomain.Money
	bankDetails        sharedDomain.BankDetails
	status             PayoutStatus
	externalTransferID string
	transactionIDs     []uuid.UUID
	failureReason      string
	scheduledAt        time.Time
	processedAt        *time.Time
	completedAt        *time.Time
	failedAt           *time.Time
}

// PayoutSpec carries the creation parameters for a payout.
type PayoutSpec struct {
	PayeeID        uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	GrossAmount    sharedDomain.Money
	TotalFees      sharedDomain.Money
	BankDetails    sharedDomain.BankDetails
	TransactionIDs []uuid.UUID
}

// NewPayout creates a pending payout. The net amount is gross minus fees
// and must come out positive.
func NewPayout(spec PayoutSpec) (*Payout, error) {
	net, err := spec.GrossAmount.Sub(spec.TotalFees)
	if err != nil {
		return nil, sharedDomain.WrapDomainError(sharedDomain.CodeValidation, err, "invalid payout amounts")
	}
	if net.Amount() <= 0 {
		return nil, sharedDomain.NewDomainError(sharedDomain.CodeValidation, "payout net amount must be positive")
	}

	p := &Payout{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		payeeID:           spec.PayeeID,
		periodStart:       spec.PeriodStart,
		periodEnd:         spec.PeriodEnd,
		grossAmount:       spec.GrossAmount,
		totalFees:         spec.TotalFees,
		netAmount:         net,
		bankDetails:       spec.BankDetails,
		status:            PayoutPending,
		transactionIDs:    append([]uuid.UUID(nil), spec.TransactionIDs...),
		scheduledAt:       time.Now().UTC(),
	}
	p.AddDomainEvent(NewPayoutCreatedEvent(p))
	return p, nil
}

func (p *Payout) PayeeID() uuid.UUID                    { return p.payeeID }
func (p *Payout) PeriodStart() time.Time                { return p.periodStart }
func (p *Payout) PeriodEnd() time.Time                  { return p.periodEnd }
func (p *Payout) GrossAmount() sharedDomain.Money       { return p.grossAmount }
func (p *Payout) TotalFees() sharedDomain.Money         { return p.totalFees }
func (p *Payout) NetAmount() sharedDomain.Money         { return p.netAmount }
func (p *Payout) BankDetails() sharedDomain.BankDetails { return p.bankDetails }
func (p *Payout) Status() PayoutStatus                  { return p.status }
func (p *Payout) ExternalTransferID() string            { return p.externalTransferID }
func (p *Payout) TransactionIDs() []uuid.UUID           { return p.transactionIDs }
func (p *Payout) FailureReason() string                 { return p.failureReason }
func (p *Payout) ScheduledAt() time.Time                { return p.scheduledAt }
func (p *Payout) ProcessedAt() *time.Time               { return p.processedAt }
func (p *Payout) CompletedAt() *time.Time               { return p.completedAt }
func (p *Payout) FailedAt() *time.Time                  { return p.failedAt }

// Hold parks a pending payout that cannot be transferred yet, typically
// because the payee's bank details are incomplete. No gateway call is
// made for a held payout.
func (p *Payout) Hold(reason string) error {
	if p.status != PayoutPending {
		return ErrInvalidPayoutState
	}
	p.status = PayoutOnHold
	p.failureReason = reason
	p.Touch()
	return nil
}

// StartProcessing moves a pending payout to processing right before the
// transfer call.
func (p *Payout) StartProcessing() error {
	if p.status != PayoutPending {
		return ErrInvalidPayoutState
	}
	now := time.Now().UTC()
	p.status = PayoutProcessing
	p.processedAt = &now
	p.Touch()
	return nil
}

// Complete records a successful bank transfer.
func (p *Payout) Complete(externalTransferID string) error {
	if p.status != PayoutProcessing {
		return ErrInvalidPayoutState
	}
	now := time.Now().UTC()
	p.status = PayoutCompleted
	p.externalTransferID = externalTransferID
	p.completedAt = &now
	p.Touch()

	p.AddDomainEvent(NewPayoutCompletedEvent(p))
	return nil
}

// Fail records a failed transfer. The attached transactions must be
// detached by the caller so a future run can retry them.
func (p *Payout) Fail(reason string) error {
	if p.status != PayoutProcessing {
		return ErrInvalidPayoutState
	}
	now := time.Now().UTC()
	p.status = PayoutFailed
	p.failureReason = reason
	p.failedAt = &now
	p.Touch()

	p.AddDomainEvent(NewPayoutFailedEvent(p))
	return nil
}

// Cancel rolls back a payout whose transactions could not be attached.
func (p *Payout) Cancel(reason string) error {
	if p.status != PayoutPending {
		return ErrInvalidPayoutState
	}
	p.status = PayoutCancelled
	p.failureReason = reason
	p.Touch()
	return nil
}

// RehydratePayout recreates a payout from persisted state.
func RehydratePayout(
	id, payeeID uuid.UUID,
	periodStart, periodEnd time.Time,
	grossAmount, totalFees, netAmount sharedDomain.Money,
	bankDetails sharedDomain.BankDetails,
	status PayoutStatus,
	externalTransferID string,
	transactionIDs []uuid.UUID,
	failureReason string,
	scheduledAt time.Time,
	processedAt, completedAt, failedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Payout {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Payout{
		BaseAggregateRoot:  sharedDomain.RehydrateBaseAggregateRoot(base, 0),
		payeeID:            payeeID,
		periodStart:        periodStart,
		periodEnd:          periodEnd,
		grossAmount:        grossAmount,
		totalFees:          totalFees,
		netAmount:          netAmount,
		bankDetails:        bankDetails,
		status:             status,
		externalTransferID: externalTransferID,
		transactionIDs:     transactionIDs,
		failureReason:      failureReason,
		scheduledAt:        scheduledAt,
		processedAt:        processedAt,
		completedAt:        completedAt,
		failedAt:           failedAt,
	}
}
