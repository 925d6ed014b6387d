package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// ContractStatus represents the lifecycle state of a contract.
type ContractStatus string

const (
	ContractPending    ContractStatus = "pending"
	ContractConfirmed  ContractStatus = "confirmed"
	ContractInProgress ContractStatus = "in_progress"
	ContractCompleted  ContractStatus = "completed"
	ContractCancelled  ContractStatus = "cancelled"
	ContractDisputed   ContractStatus = "disputed"
)

// CancellationPolicy controls how strictly cancellations are handled.
type CancellationPolicy string

const (
	PolicyFlexible CancellationPolicy = "flexible"
	PolicyModerate CancellationPolicy = "moderate"
	PolicyStrict   CancellationPolicy = "strict"
)

// StageName identifies a payment milestone within a contract.
type StageName string

const (
	StageDeposit StageName = "deposit"
	StageMiddle  StageName = "middle"
	StageFinal   StageName = "final"
)

// StageStatus represents the state of one payment stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StagePaid     StageStatus = "paid"
	StageCanceled StageStatus = "canceled"
)

// Stage is an ordered payment milestone belonging to a contract.
type Stage struct {
	sharedDomain.BaseEntity
	contractID uuid.UUID
	name       StageName
	orderIndex int
	amount     sharedDomain.Money
	status     StageStatus
	paidAt     *time.Time
}

func (s *Stage) ContractID() uuid.UUID      { return s.contractID }
func (s *Stage) Name() StageName            { return s.name }
func (s *Stage) OrderIndex() int            { return s.orderIndex }
func (s *Stage) Amount() sharedDomain.Money { return s.amount }
func (s *Stage) Status() StageStatus        { return s.status }
func (s *Stage) PaidAt() *time.Time         { return s.paidAt }

// IsDeposit reports whether this is the first stage of the contract.
func (s *Stage) IsDeposit() bool { return s.orderIndex == 0 }

// RehydrateStage recreates a stage from persisted state.
func RehydrateStage(
	id, contractID uuid.UUID,
	name StageName,
	orderIndex int,
	amount sharedDomain.Money,
	status StageStatus,
	paidAt *time.Time,
	createdAt, updatedAt time.Time,
) *Stage {
	return &Stage{
		BaseEntity: sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		contractID: contractID,
		name:       name,
		orderIndex: orderIndex,
		amount:     amount,
		status:     status,
		paidAt:     paidAt,
	}
}

// Contract is one commercial agreement between a payer and a payee,
// paid through ordered escrow stages. The fee split is computed once at
// creation and never recomputed: payeePayout + platformFee == totalAmount.
type Contract struct {
	sharedDomain.BaseAggregateRoot
	payerID            uuid.UUID
	payeeID            uuid.UUID
	title              string
	description        string
	totalAmount        sharedDomain.Money
	feeRateBps         int
	platformFee        sharedDomain.Money
	payeePayout        sharedDomain.Money
	cancellationPolicy CancellationPolicy
	serviceDate        *time.Time
	serviceLocation    string
	status             ContractStatus
	payerAcceptedTerms bool
	payeeAcceptedTerms bool
	cancelReason       string
	confirmedAt        *time.Time
	startedAt          *time.Time
	completedAt        *time.Time
	cancelledAt        *time.Time
	stages             []*Stage
}

// ContractSpec carries the creation parameters for a contract.
type ContractSpec struct {
	PayerID            uuid.UUID
	PayeeID            uuid.UUID
	Title              string
	Description        string
	TotalAmount        sharedDomain.Money
	FeeRateBps         int
	DepositPercent     int
	MiddlePercent      int // 0 means a two-stage contract
	CancellationPolicy CancellationPolicy
	ServiceDate        *time.Time
	ServiceLocation    string
}

// NewContract creates a pending contract with its payment stages.
// The deposit stage is totalAmount x depositPercent/100 (floored); an
// optional middle stage follows the same rule; the final stage takes the
// remainder, so the stages always sum to the exact total.
func NewContract(spec ContractSpec) (*Contract, error) {
	if spec.TotalAmount.Amount() <= 0 {
		return nil, ErrInvalidAmount
	}
	if spec.DepositPercent < 1 || spec.DepositPercent > 99 {
		return nil, ErrInvalidDepositPercent
	}
	if spec.MiddlePercent < 0 || spec.DepositPercent+spec.MiddlePercent > 99 {
		return nil, ErrInvalidDepositPercent
	}
	if spec.CancellationPolicy == "" {
		spec.CancellationPolicy = PolicyModerate
	}

	fee, payout, err := spec.TotalAmount.FeeAt(spec.FeeRateBps)
	if err != nil {
		return nil, sharedDomain.WrapDomainError(sharedDomain.CodeValidation, err, "invalid fee rate")
	}

	c := &Contract{
		BaseAggregateRoot:  sharedDomain.NewBaseAggregateRoot(),
		payerID:            spec.PayerID,
		payeeID:            spec.PayeeID,
		title:              spec.Title,
		description:        spec.Description,
		totalAmount:        spec.TotalAmount,
		feeRateBps:         spec.FeeRateBps,
		platformFee:        fee,
		payeePayout:        payout,
		cancellationPolicy: spec.CancellationPolicy,
		serviceDate:        spec.ServiceDate,
		serviceLocation:    spec.ServiceLocation,
		status:             ContractPending,
	}

	deposit := spec.TotalAmount.Percent(spec.DepositPercent)
	c.addStage(StageDeposit, deposit)
	remainder := spec.TotalAmount
	remainder, _ = remainder.Sub(deposit)
	if spec.MiddlePercent > 0 {
		middle := spec.TotalAmount.Percent(spec.MiddlePercent)
		c.addStage(StageMiddle, middle)
		remainder, _ = remainder.Sub(middle)
	}
	c.addStage(StageFinal, remainder)

	c.AddDomainEvent(NewContractCreatedEvent(c))
	return c, nil
}

func (c *Contract) addStage(name StageName, amount sharedDomain.Money) {
	c.stages = append(c.stages, &Stage{
		BaseEntity: sharedDomain.NewBaseEntity(),
		contractID: c.ID(),
		name:       name,
		orderIndex: len(c.stages),
		amount:     amount,
		status:     StagePending,
	})
}

func (c *Contract) PayerID() uuid.UUID                     { return c.payerID }
func (c *Contract) PayeeID() uuid.UUID                     { return c.payeeID }
func (c *Contract) Title() string                          { return c.title }
func (c *Contract) Description() string                    { return c.description }
func (c *Contract) TotalAmount() sharedDomain.Money        { return c.totalAmount }
func (c *Contract) FeeRateBps() int                        { return c.feeRateBps }
func (c *Contract) PlatformFee() sharedDomain.Money        { return c.platformFee }
func (c *Contract) PayeePayout() sharedDomain.Money        { return c.payeePayout }
func (c *Contract) CancellationPolicy() CancellationPolicy { return c.cancellationPolicy }
func (c *Contract) ServiceDate() *time.Time                { return c.serviceDate }
func (c *Contract) ServiceLocation() string                { return c.serviceLocation }
func (c *Contract) Status() ContractStatus                 { return c.status }
func (c *Contract) PayerAcceptedTerms() bool               { return c.payerAcceptedTerms }
func (c *Contract) PayeeAcceptedTerms() bool               { return c.payeeAcceptedTerms }
func (c *Contract) CancelReason() string                   { return c.cancelReason }
func (c *Contract) ConfirmedAt() *time.Time                { return c.confirmedAt }
func (c *Contract) StartedAt() *time.Time                  { return c.startedAt }
func (c *Contract) CompletedAt() *time.Time                { return c.completedAt }
func (c *Contract) CancelledAt() *time.Time                { return c.cancelledAt }
func (c *Contract) Stages() []*Stage                       { return c.stages }

// IsParty reports whether the given user is the payer or the payee.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	return userID == c.payerID || userID == c.payeeID
}

// IsTerminal reports whether the contract reached a final state.
func (c *Contract) IsTerminal() bool {
	return c.status == ContractCompleted || c.status == ContractCancelled
}

// FindStage returns the stage with the given ID.
func (c *Contract) FindStage(stageID uuid.UUID) (*Stage, error) {
	for _, stage := range c.stages {
		if stage.ID() == stageID {
			return stage, nil
		}
	}
	return nil, ErrStageNotFound
}

// Confirm transitions pending -> confirmed. Only the named payee may
// confirm; confirming records the payee's terms acceptance.
func (c *Contract) Confirm(payeeID uuid.UUID) error {
	if payeeID != c.payeeID {
		return ErrContractNotFound
	}
	if c.status != ContractPending {
		return ErrInvalidContractState
	}

	now := time.Now().UTC()
	c.status = ContractConfirmed
	c.payeeAcceptedTerms = true
	c.confirmedAt = &now
	c.Touch()

	c.AddDomainEvent(NewContractConfirmedEvent(c.ID(), payeeID))
	return nil
}

// AcceptTerms records the payer's terms acknowledgement. Status is
// unchanged.
func (c *Contract) AcceptTerms(payerID uuid.UUID) error {
	if payerID != c.payerID {
		return ErrContractNotFound
	}
	c.payerAcceptedTerms = true
	c.Touch()
	return nil
}

// StageForPayment validates that the given stage may be paid right now
// and returns it. The ledger itself is not modified.
func (c *Contract) StageForPayment(stageID uuid.UUID) (*Stage, error) {
	if c.status != ContractConfirmed && c.status != ContractInProgress {
		return nil, ErrInvalidContractState
	}
	stage, err := c.FindStage(stageID)
	if err != nil {
		return nil, err
	}
	if stage.status != StagePending {
		return nil, ErrInvalidStageState
	}
	return stage, nil
}

// MarkStagePaid marks a stage paid after the gateway confirmed the funds.
// paidAmount must match the stage amount exactly; mismatches are rejected
// with no state change. Paying the deposit stage starts the contract.
func (c *Contract) MarkStagePaid(stageID uuid.UUID, paidAmount sharedDomain.Money) (*Stage, error) {
	stage, err := c.StageForPayment(stageID)
	if err != nil {
		return nil, err
	}
	if !paidAmount.Equals(stage.amount) {
		return nil, ErrAmountMismatch
	}

	now := time.Now().UTC()
	stage.status = StagePaid
	stage.paidAt = &now
	stage.Touch()

	if stage.IsDeposit() && c.status == ContractConfirmed {
		c.status = ContractInProgress
		c.startedAt = &now
		c.AddDomainEvent(NewContractStartedEvent(c.ID()))
	}
	c.Touch()

	return stage, nil
}

// Complete transitions in_progress -> completed. Only the payer may
// confirm service completion.
func (c *Contract) Complete(payerID uuid.UUID) error {
	if payerID != c.payerID {
		return ErrContractNotFound
	}
	if c.status != ContractInProgress {
		return ErrInvalidContractState
	}

	now := time.Now().UTC()
	c.status = ContractCompleted
	c.completedAt = &now
	c.Touch()

	c.AddDomainEvent(NewContractCompletedEvent(c.ID()))
	return nil
}

// Dispute moves any active contract to disputed. Either party may raise.
func (c *Contract) Dispute(raisedBy uuid.UUID, reason string) error {
	if !c.IsParty(raisedBy) {
		return ErrContractNotFound
	}
	if c.IsTerminal() || c.status == ContractDisputed {
		return ErrInvalidContractState
	}

	c.status = ContractDisputed
	c.cancelReason = reason
	c.Touch()

	c.AddDomainEvent(NewContractDisputedEvent(c.ID(), raisedBy, reason))
	return nil
}

// Cancel cancels the contract and all pending stages. Either party may
// cancel; completed and already-cancelled contracts cannot be cancelled.
func (c *Contract) Cancel(cancelledBy uuid.UUID, reason string) error {
	if !c.IsParty(cancelledBy) {
		return ErrContractNotFound
	}
	if c.status == ContractCompleted || c.status == ContractCancelled {
		return ErrInvalidContractState
	}

	now := time.Now().UTC()
	c.status = ContractCancelled
	c.cancelReason = reason
	c.cancelledAt = &now
	for _, stage := range c.stages {
		if stage.status == StagePending {
			stage.status = StageCanceled
			stage.Touch()
		}
	}
	c.Touch()

	c.AddDomainEvent(NewContractCancelledEvent(c.ID(), cancelledBy, reason))
	return nil
}

// MarkCancelled records a cancellation decided elsewhere (refund flow).
func (c *Contract) MarkCancelled(reason string) {
	if c.status == ContractCancelled {
		return
	}
	now := time.Now().UTC()
	c.status = ContractCancelled
	c.cancelReason = reason
	c.cancelledAt = &now
	c.Touch()
}

// RehydrateContract recreates a contract from persisted state.
func RehydrateContract(
	id uuid.UUID,
	payerID, payeeID uuid.UUID,
	title, description string,
	totalAmount sharedDomain.Money,
	feeRateBps int,
	platformFee, payeePayout sharedDomain.Money,
	policy CancellationPolicy,
	serviceDate *time.Time,
	serviceLocation string,
	status ContractStatus,
	payerAcceptedTerms, payeeAcceptedTerms bool,
	cancelReason string,
	confirmedAt, startedAt, completedAt, cancelledAt *time.Time,
	stages []*Stage,
	version int,
	createdAt, updatedAt time.Time,
) *Contract {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Contract{
		BaseAggregateRoot:  sharedDomain.RehydrateBaseAggregateRoot(base, version),
		payerID:            payerID,
		payeeID:            payeeID,
		title:              title,
		description:        description,
		totalAmount:        totalAmount,
		feeRateBps:         feeRateBps,
		platformFee:        platformFee,
		payeePayout:        payeePayout,
		cancellationPolicy: policy,
		serviceDate:        serviceDate,
		serviceLocation:    serviceLocation,
		status:             status,
		payerAcceptedTerms: payerAcceptedTerms,
		payeeAcceptedTerms: payeeAcceptedTerms,
		cancelReason:       cancelReason,
		confirmedAt:        confirmedAt,
		startedAt:          startedAt,
		completedAt:        completedAt,
		cancelledAt:        cancelledAt,
		stages:             stages,
	}
}
