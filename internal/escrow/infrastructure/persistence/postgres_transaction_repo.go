package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransactionRepository implements domain.TransactionRepository
// using PostgreSQL. The unique index on (contract_id, stage_id,
// external_reference) backs webhook idempotency.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction repository.
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

const transactionColumns = `id, contract_id, stage_id, milestone, amount, currency, status,
	external_reference, platform_fee, payout_id, funded_at, released_at, refunded_at,
	version, created_at, updated_at`

// Save upserts a transaction.
func (r *PostgresTransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	query := `
		INSERT INTO escrow_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			platform_fee = EXCLUDED.platform_fee,
			payout_id = EXCLUDED.payout_id,
			released_at = EXCLUDED.released_at,
			refunded_at = EXCLUDED.refunded_at,
			version = escrow_transactions.version + 1,
			updated_at = EXCLUDED.updated_at
	`
	_, err := exec.Exec(ctx, query,
		tx.ID(),
		tx.ContractID(),
		tx.StageID(),
		string(tx.Milestone()),
		tx.Amount().Amount(),
		tx.Amount().Currency(),
		string(tx.Status()),
		tx.ExternalReference(),
		tx.PlatformFee().Amount(),
		tx.PayoutID(),
		tx.FundedAt(),
		tx.ReleasedAt(),
		tx.RefundedAt(),
		tx.Version(),
		tx.CreatedAt(),
		tx.UpdatedAt(),
	)
	return err
}

// FindByID retrieves a transaction. Returns nil when absent.
func (r *PostgresTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	return r.findOne(ctx, exec, `SELECT `+transactionColumns+` FROM escrow_transactions WHERE id = $1`, id)
}

// FindByExternalReference resolves a webhook idempotency key. Returns nil
// when the reference was never recorded.
func (r *PostgresTransactionRepository) FindByExternalReference(ctx context.Context, contractID, stageID uuid.UUID, reference string) (*domain.Transaction, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	return r.findOne(ctx, exec,
		`SELECT `+transactionColumns+` FROM escrow_transactions WHERE contract_id = $1 AND stage_id = $2 AND external_reference = $3`,
		contractID, stageID, reference,
	)
}

// FindByContract lists all transactions of a contract, oldest first.
func (r *PostgresTransactionRepository) FindByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Transaction, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	return r.findMany(ctx, exec,
		`SELECT `+transactionColumns+` FROM escrow_transactions WHERE contract_id = $1 ORDER BY created_at`,
		contractID,
	)
}

// FindByContractAndStatus lists a contract's transactions in any of the
// given statuses, oldest first.
func (r *PostgresTransactionRepository) FindByContractAndStatus(ctx context.Context, contractID uuid.UUID, statuses ...domain.TransactionStatus) ([]*domain.Transaction, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return r.findMany(ctx, exec,
		`SELECT `+transactionColumns+` FROM escrow_transactions WHERE contract_id = $1 AND status = ANY($2) ORDER BY created_at`,
		contractID, names,
	)
}

// FindReleasedWithoutPayout lists settlement candidates across all
// contracts, oldest first.
func (r *PostgresTransactionRepository) FindReleasedWithoutPayout(ctx context.Context) ([]*domain.Transaction, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	return r.findMany(ctx, exec,
		`SELECT `+transactionColumns+` FROM escrow_transactions WHERE status = $1 AND payout_id IS NULL ORDER BY created_at`,
		string(domain.TransactionReleased),
	)
}

func (r *PostgresTransactionRepository) findOne(ctx context.Context, exec sharedPersistence.DBExecutor, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(exec.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) findMany(ctx context.Context, exec sharedPersistence.DBExecutor, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		id, contractID, stageID          uuid.UUID
		milestone, currency, status, ref string
		amount, platformFee              int64
		payoutID                         *uuid.UUID
		fundedAt, releasedAt, refundedAt *time.Time
		version                          int
		createdAt, updatedAt             time.Time
	)
	err := row.Scan(
		&id, &contractID, &stageID, &milestone, &amount, &currency, &status,
		&ref, &platformFee, &payoutID, &fundedAt, &releasedAt, &refundedAt,
		&version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateTransaction(
		id, contractID, stageID,
		domain.StageName(milestone),
		sharedDomain.MustMoney(amount, currency),
		domain.TransactionStatus(status),
		ref,
		sharedDomain.MustMoney(platformFee, currency),
		payoutID,
		fundedAt, releasedAt, refundedAt,
		version,
		createdAt, updatedAt,
	), nil
}
