package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// RunResult is the complete observable outcome of one settlement batch.
type RunResult struct {
	// Ran is false when settlement is disabled by configuration; in that
	// case no other field is meaningful and no writes happened.
	Ran bool `json:"ran"`

	Processed  int `json:"processed"`
	SkippedKyc int `json:"skipped_kyc"`
	BelowMin   int `json:"below_min"`
	Failed     int `json:"failed"`

	TotalMoved int64       `json:"total_moved"`
	Currency   string      `json:"currency,omitempty"`
	PayoutIDs  []uuid.UUID `json:"payout_ids,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}

// SettlementRun is the persisted history record of one batch execution.
type SettlementRun struct {
	sharedDomain.BaseEntity
	startedAt  time.Time
	finishedAt *time.Time
	result     RunResult
}

// NewSettlementRun opens a run record at batch start.
func NewSettlementRun() *SettlementRun {
	return &SettlementRun{
		BaseEntity: sharedDomain.NewBaseEntity(),
		startedAt:  time.Now().UTC(),
	}
}

func (r *SettlementRun) StartedAt() time.Time   { return r.startedAt }
func (r *SettlementRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *SettlementRun) Result() RunResult      { return r.result }

// Finish closes the run with its result.
func (r *SettlementRun) Finish(result RunResult) {
	now := time.Now().UTC()
	r.finishedAt = &now
	r.result = result
	r.Touch()
}

// RehydrateSettlementRun recreates a run record from persisted state.
func RehydrateSettlementRun(id uuid.UUID, startedAt time.Time, finishedAt *time.Time, result RunResult, createdAt, updatedAt time.Time) *SettlementRun {
	return &SettlementRun{
		BaseEntity: sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		startedAt:  startedAt,
		finishedAt: finishedAt,
		result:     result,
	}
}
