package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRunRepository implements domain.RunRepository using PostgreSQL.
type PostgresRunRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRunRepository creates a new PostgreSQL run repository.
func NewPostgresRunRepository(pool *pgxpool.Pool) *PostgresRunRepository {
	return &PostgresRunRepository{pool: pool}
}

// Save upserts a run record.
func (r *PostgresRunRepository) Save(ctx context.Context, run *domain.SettlementRun) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	result := run.Result()
	payoutIDs, err := json.Marshal(result.PayoutIDs)
	if err != nil {
		return err
	}
	runErrors, err := json.Marshal(result.Errors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO settlement_runs (id, started_at, finished_at, ran, processed_count,
			skipped_kyc_count, below_min_count, failed_count, total_amount, currency,
			payout_ids, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			ran = EXCLUDED.ran,
			processed_count = EXCLUDED.processed_count,
			skipped_kyc_count = EXCLUDED.skipped_kyc_count,
			below_min_count = EXCLUDED.below_min_count,
			failed_count = EXCLUDED.failed_count,
			total_amount = EXCLUDED.total_amount,
			currency = EXCLUDED.currency,
			payout_ids = EXCLUDED.payout_ids,
			errors = EXCLUDED.errors
	`
	_, err = exec.Exec(ctx, query,
		run.ID(),
		run.StartedAt(),
		run.FinishedAt(),
		result.Ran,
		result.Processed,
		result.SkippedKyc,
		result.BelowMin,
		result.Failed,
		result.TotalMoved,
		result.Currency,
		payoutIDs,
		runErrors,
		run.CreatedAt(),
	)
	return err
}

// FindLatest returns the most recent run, or nil when none exists.
func (r *PostgresRunRepository) FindLatest(ctx context.Context) (*domain.SettlementRun, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	var (
		id                   uuid.UUID
		startedAt            time.Time
		finishedAt           *time.Time
		result               domain.RunResult
		payoutIDsRaw, errRaw []byte
		createdAt            time.Time
	)
	err := exec.QueryRow(ctx, `
		SELECT id, started_at, finished_at, ran, processed_count, skipped_kyc_count,
			below_min_count, failed_count, total_amount, currency, payout_ids, errors, created_at
		FROM settlement_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(
		&id, &startedAt, &finishedAt, &result.Ran, &result.Processed, &result.SkippedKyc,
		&result.BelowMin, &result.Failed, &result.TotalMoved, &result.Currency,
		&payoutIDsRaw, &errRaw, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(payoutIDsRaw, &result.PayoutIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errRaw, &result.Errors); err != nil {
		return nil, err
	}

	updatedAt := createdAt
	if finishedAt != nil {
		updatedAt = *finishedAt
	}
	return domain.RehydrateSettlementRun(id, startedAt, finishedAt, result, createdAt, updatedAt), nil
}

// PostgresRunLock implements domain.RunLock with a single lease row per
// lock name. Acquiring a free or expired lease is one conditional
// statement, so concurrent instances cannot both succeed.
type PostgresRunLock struct {
	pool *pgxpool.Pool
}

// NewPostgresRunLock creates a new PostgreSQL run lock.
func NewPostgresRunLock(pool *pgxpool.Pool) *PostgresRunLock {
	return &PostgresRunLock{pool: pool}
}

func lockName(day time.Time) string {
	return "settlement:" + day.UTC().Format("2006-01-02")
}

// Acquire takes the lease for the given day.
func (l *PostgresRunLock) Acquire(ctx context.Context, day time.Time, holder string, expiresAt time.Time) (bool, error) {
	holderID, err := uuid.Parse(holder)
	if err != nil {
		return false, err
	}

	tag, err := l.pool.Exec(ctx, `
		INSERT INTO settlement_locks (name, holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			holder = EXCLUDED.holder,
			expires_at = EXCLUDED.expires_at
		WHERE settlement_locks.expires_at IS NULL OR settlement_locks.expires_at < NOW()`,
		lockName(day), holderID, expiresAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Release drops the lease if this holder still owns it.
func (l *PostgresRunLock) Release(ctx context.Context, day time.Time, holder string) error {
	holderID, err := uuid.Parse(holder)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `DELETE FROM settlement_locks WHERE name = $1 AND holder = $2`, lockName(day), holderID)
	return err
}
