package outbox

import (
	"context"
	"time"
)

// Repository is the outbox table. Command handlers append to it inside
// their unit of work; the worker drains it.
type Repository interface {
	// Save stores a single outbox message.
	Save(ctx context.Context, msg *Message) error

	// SaveBatch stores several messages in one statement, used when an
	// aggregate raises more than one event per command.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns pending messages oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	// MarkPublished records a successful publish.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a publish failure and when to retry.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error

	// MarkDead parks a message that exhausted its retries.
	MarkDead(ctx context.Context, id int64, reason string) error

	// GetFailed returns failed messages whose retry time has come.
	GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error)

	// DeleteOld removes published messages past the retention window
	// and reports how many were deleted.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
