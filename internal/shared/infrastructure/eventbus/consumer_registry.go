package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// ConsumerRegistry routes consumed events to the consumers that
// declared interest in their routing keys.
type ConsumerRegistry struct {
	mu     sync.RWMutex
	byKey  map[string][]EventConsumer
	logger *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{
		byKey:  make(map[string][]EventConsumer),
		logger: logger,
	}
}

// Register subscribes a consumer under every routing key it declares.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	keys := consumer.EventTypes()

	r.mu.Lock()
	for _, key := range keys {
		r.byKey[key] = append(r.byKey[key], consumer)
	}
	r.mu.Unlock()

	r.logger.Debug("consumer registered", "routing_keys", keys)
}

// GetConsumers returns a copy of the consumer list for a routing key.
func (r *ConsumerRegistry) GetConsumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registered := r.byKey[routingKey]
	if len(registered) == 0 {
		return nil
	}
	consumers := make([]EventConsumer, len(registered))
	copy(consumers, registered)
	return consumers
}

// GetAllEventTypes returns every routing key with at least one consumer.
func (r *ConsumerRegistry) GetAllEventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for key := range r.byKey {
		keys = append(keys, key)
	}
	return keys
}

// Dispatch delivers an event to every consumer of its routing key. A
// failing consumer does not stop delivery to the rest; the last error
// is returned.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	consumers := r.GetConsumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.Debug("no consumers for routing key", "routing_key", event.RoutingKey)
		return nil
	}

	var lastErr error
	for _, consumer := range consumers {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.Error("consumer failed to handle event",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			lastErr = err
		}
	}
	return lastErr
}

// ConsumerCount returns the number of registered consumer instances,
// counting a consumer once per routing key it subscribes to.
func (r *ConsumerRegistry) ConsumerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, consumers := range r.byKey {
		count += len(consumers)
	}
	return count
}
