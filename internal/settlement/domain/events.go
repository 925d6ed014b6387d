package domain

import (
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregatePayout = "Payout"

// PayoutCreatedEvent is emitted when the batch creates a pending payout.
type PayoutCreatedEvent struct {
	sharedDomain.BaseEvent
	PayeeID          uuid.UUID `json:"payee_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	TransactionCount int       `json:"transaction_count"`
}

func NewPayoutCreatedEvent(p *Payout) *PayoutCreatedEvent {
	return &PayoutCreatedEvent{
		BaseEvent:        sharedDomain.NewBaseEvent(p.ID(), aggregatePayout, "settlement.payout.created"),
		PayeeID:          p.PayeeID(),
		Amount:           p.NetAmount().Amount(),
		Currency:         p.NetAmount().Currency(),
		TransactionCount: len(p.TransactionIDs()),
	}
}

// PayoutCompletedEvent is emitted after a successful bank transfer.
type PayoutCompletedEvent struct {
	sharedDomain.BaseEvent
	PayeeID            uuid.UUID `json:"payee_id"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	ExternalTransferID string    `json:"external_transfer_id"`
}

func NewPayoutCompletedEvent(p *Payout) *PayoutCompletedEvent {
	return &PayoutCompletedEvent{
		BaseEvent:          sharedDomain.NewBaseEvent(p.ID(), aggregatePayout, "settlement.payout.completed"),
		PayeeID:            p.PayeeID(),
		Amount:             p.NetAmount().Amount(),
		Currency:           p.NetAmount().Currency(),
		ExternalTransferID: p.ExternalTransferID(),
	}
}

// PayoutFailedEvent is emitted after a failed bank transfer.
type PayoutFailedEvent struct {
	sharedDomain.BaseEvent
	PayeeID uuid.UUID `json:"payee_id"`
	Reason  string    `json:"reason"`
}

func NewPayoutFailedEvent(p *Payout) *PayoutFailedEvent {
	return &PayoutFailedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(p.ID(), aggregatePayout, "settlement.payout.failed"),
		PayeeID:   p.PayeeID(),
		Reason:    p.FailureReason(),
	}
}
