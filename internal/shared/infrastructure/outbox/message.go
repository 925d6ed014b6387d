package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// Message is one staged domain event awaiting publication. It is written
// in the same transaction as the state change that produced it, so the
// ledger and the event stream cannot diverge.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage stages a domain event for the outbox. The routing key
// doubles as the event type; consumers bind on it.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// IsPublished reports whether the message reached the broker.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// CanRetry reports whether the message has retry budget left.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}
