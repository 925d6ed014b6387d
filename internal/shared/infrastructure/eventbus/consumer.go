package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventConsumer handles a set of routing keys, e.g.
// "escrow.contract.funded" or "settlement.payout.completed".
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer binds to.
	EventTypes() []string

	// Handle processes one delivered event. Deliveries are
	// at-least-once; implementations deduplicate on EventID.
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is one event delivered from the broker.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata traces a delivered event back to the command that
// caused it.
type EventMetadata struct {
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// Consumer receives events from the message broker.
type Consumer interface {
	// Start begins consuming. It blocks until the context is cancelled.
	Start(ctx context.Context) error

	// RegisterConsumer adds an event consumer before Start.
	RegisterConsumer(consumer EventConsumer)

	// Close closes the broker connection.
	Close() error
}
