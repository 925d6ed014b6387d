package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PayoutRepository persists payouts.
type PayoutRepository interface {
	Save(ctx context.Context, payout *Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	FindByPayee(ctx context.Context, payeeID uuid.UUID) ([]*Payout, error)
	FindByStatus(ctx context.Context, status PayoutStatus) ([]*Payout, error)
}

// RunRepository persists settlement run history.
type RunRepository interface {
	Save(ctx context.Context, run *SettlementRun) error
	FindLatest(ctx context.Context) (*SettlementRun, error)
}

// RunLock is the cross-instance mutual exclusion for the scheduler. One
// lease exists per settlement day; the first instance to acquire it runs
// the batch, the others skip.
type RunLock interface {
	// Acquire takes the lease for the given day, valid until expiresAt.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, day time.Time, holder string, expiresAt time.Time) (bool, error)

	// Release drops the lease early so a manual re-trigger on the same
	// day is possible after a failed run.
	Release(ctx context.Context, day time.Time, holder string) error
}
