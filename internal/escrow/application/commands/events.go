package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// stageEvents applies command metadata to the events and stores them in
// the outbox within the current transaction.
func stageEvents(ctx context.Context, outboxRepo outbox.Repository, actorID uuid.UUID, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(actorID))

	msgs := make([]*outbox.Message, 0, len(events))
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return outboxRepo.SaveBatch(ctx, msgs)
}
