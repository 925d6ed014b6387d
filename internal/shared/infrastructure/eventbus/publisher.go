package eventbus

import (
	"context"
)

// Publisher sends outbox messages to the event bus. The RabbitMQ
// implementation is used in full deployments; the in-process bus
// covers local mode.
type Publisher interface {
	// Publish sends a payload under a routing key such as
	// "escrow.contract.created" or "settlement.payout.completed".
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close releases the broker connection.
	Close() error
}
