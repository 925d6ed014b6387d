package outbox

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractFundedEvent is a minimal domain event for staging tests.
type contractFundedEvent struct {
	domain.BaseEvent
	Amount int64 `json:"amount"`
}

func newContractFundedEvent(contractID uuid.UUID, amount int64) *contractFundedEvent {
	return &contractFundedEvent{
		BaseEvent: domain.NewBaseEvent(contractID, "contract", "escrow.contract.funded"),
		Amount:    amount,
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("stages a domain event", func(t *testing.T) {
		contractID := uuid.New()
		event := newContractFundedEvent(contractID, 44000)

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Equal(t, event.EventID(), msg.EventID)
		assert.Equal(t, "contract", msg.AggregateType)
		assert.Equal(t, contractID, msg.AggregateID)
		assert.Equal(t, "escrow.contract.funded", msg.EventType)
		assert.Equal(t, "escrow.contract.funded", msg.RoutingKey)
		assert.Equal(t, event.OccurredAt(), msg.CreatedAt)

		// A staged message has no delivery history yet.
		assert.Zero(t, msg.ID)
		assert.Zero(t, msg.RetryCount)
		assert.Nil(t, msg.PublishedAt)
		assert.Nil(t, msg.NextRetryAt)
		assert.Nil(t, msg.LastError)
		assert.Nil(t, msg.DeadLetteredAt)
		assert.Nil(t, msg.DeadLetterReason)
	})

	t.Run("payload carries the event body", func(t *testing.T) {
		event := newContractFundedEvent(uuid.New(), 44000)

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Contains(t, string(msg.Payload), `"amount":44000`)
	})

	t.Run("metadata carries the trace identifiers", func(t *testing.T) {
		event := newContractFundedEvent(uuid.New(), 44000)
		metadata := domain.EventMetadata{
			CorrelationID: uuid.New(),
			CausationID:   uuid.New(),
			ActorID:       uuid.New(),
		}
		event.SetMetadata(metadata)

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Contains(t, string(msg.Metadata), metadata.CorrelationID.String())
		assert.Contains(t, string(msg.Metadata), metadata.ActorID.String())
	})
}

func TestMessageIsPublished(t *testing.T) {
	msg := &Message{}
	assert.False(t, msg.IsPublished())

	now := time.Now()
	msg.PublishedAt = &now
	assert.True(t, msg.IsPublished())
}

func TestMessageCanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"fresh message", 0, 3, true},
		{"below budget", 2, 5, true},
		{"budget spent", 5, 5, false},
		{"over budget", 10, 5, false},
		{"zero budget", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{RetryCount: tt.retryCount}
			assert.Equal(t, tt.want, msg.CanRetry(tt.maxRetries))
		})
	}
}
