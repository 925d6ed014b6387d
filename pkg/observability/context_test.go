package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationIDContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "corr-1")
		assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	})

	t.Run("empty id generates one", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "")
		assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	})

	t.Run("absent returns empty", func(t *testing.T) {
		assert.Empty(t, CorrelationIDFromContext(context.Background()))
	})
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	generated := WithRequestID(context.Background(), "")
	assert.NotEmpty(t, RequestIDFromContext(generated))
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")
	assert.Equal(t, "user-1", UserIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(context.Background()))
}

func TestNewRequestContext(t *testing.T) {
	t.Run("propagates the parent correlation ID", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "parent-corr")
		assert.Equal(t, "parent-corr", CorrelationIDFromContext(ctx))
		assert.NotEmpty(t, RequestIDFromContext(ctx))
	})

	t.Run("generates a correlation ID when no parent is given", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "")
		assert.NotEmpty(t, CorrelationIDFromContext(ctx))
		assert.NotEmpty(t, RequestIDFromContext(ctx))
	})
}
