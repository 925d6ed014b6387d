package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPayoutRepository implements domain.PayoutRepository using
// PostgreSQL. The attached transaction ids are stored as a JSONB list on
// the payout row.
type PostgresPayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPayoutRepository creates a new PostgreSQL payout repository.
func NewPostgresPayoutRepository(pool *pgxpool.Pool) *PostgresPayoutRepository {
	return &PostgresPayoutRepository{pool: pool}
}

const payoutColumns = `id, payee_id, period_start, period_end, gross_amount, total_fees,
	net_amount, currency, transaction_count, status, bank_code, bank_account_number,
	bank_account_holder, external_transfer_id, transaction_ids, failure_reason,
	scheduled_at, processed_at, completed_at, failed_at, created_at, updated_at`

// Save upserts a payout.
func (r *PostgresPayoutRepository) Save(ctx context.Context, payout *domain.Payout) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	txIDs, err := json.Marshal(payout.TransactionIDs())
	if err != nil {
		return err
	}

	var transferID *string
	if payout.ExternalTransferID() != "" {
		id := payout.ExternalTransferID()
		transferID = &id
	}
	var failureReason *string
	if payout.FailureReason() != "" {
		reason := payout.FailureReason()
		failureReason = &reason
	}

	query := `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			external_transfer_id = EXCLUDED.external_transfer_id,
			transaction_ids = EXCLUDED.transaction_ids,
			transaction_count = EXCLUDED.transaction_count,
			failure_reason = EXCLUDED.failure_reason,
			processed_at = EXCLUDED.processed_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at,
			updated_at = EXCLUDED.updated_at
	`
	details := payout.BankDetails()
	_, err = exec.Exec(ctx, query,
		payout.ID(),
		payout.PayeeID(),
		payout.PeriodStart(),
		payout.PeriodEnd(),
		payout.GrossAmount().Amount(),
		payout.TotalFees().Amount(),
		payout.NetAmount().Amount(),
		payout.NetAmount().Currency(),
		len(payout.TransactionIDs()),
		string(payout.Status()),
		details.BankCode(),
		details.AccountNumber(),
		details.AccountHolderName(),
		transferID,
		txIDs,
		failureReason,
		payout.ScheduledAt(),
		payout.ProcessedAt(),
		payout.CompletedAt(),
		payout.FailedAt(),
		payout.CreatedAt(),
		payout.UpdatedAt(),
	)
	return err
}

// FindByID retrieves a payout. Returns nil when absent.
func (r *PostgresPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	payout, err := scanPayout(exec.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payout, nil
}

// FindByPayee lists a payee's payouts, newest first.
func (r *PostgresPayoutRepository) FindByPayee(ctx context.Context, payeeID uuid.UUID) ([]*domain.Payout, error) {
	return r.findMany(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE payee_id = $1 ORDER BY created_at DESC`, payeeID)
}

// FindByStatus lists payouts in the given status, oldest first.
func (r *PostgresPayoutRepository) FindByStatus(ctx context.Context, status domain.PayoutStatus) ([]*domain.Payout, error) {
	return r.findMany(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE status = $1 ORDER BY created_at`, string(status))
}

func (r *PostgresPayoutRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Payout, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		id, payeeID                      uuid.UUID
		periodStart, periodEnd           time.Time
		gross, fees, net                 int64
		currency, status                 string
		txCount                          int
		bankCode, bankNumber, bankHolder string
		transferID, failureReason        *string
		txIDsRaw                         []byte
		scheduledAt                      time.Time
		processedAt, completedAt         *time.Time
		failedAt                         *time.Time
		createdAt, updatedAt             time.Time
	)
	err := row.Scan(
		&id, &payeeID, &periodStart, &periodEnd, &gross, &fees, &net, &currency,
		&txCount, &status, &bankCode, &bankNumber, &bankHolder, &transferID,
		&txIDsRaw, &failureReason, &scheduledAt, &processedAt, &completedAt,
		&failedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	var txIDs []uuid.UUID
	if err := json.Unmarshal(txIDsRaw, &txIDs); err != nil {
		return nil, err
	}

	bankDetails, _ := sharedDomain.NewBankDetails(bankCode, bankNumber, bankHolder)
	return domain.RehydratePayout(
		id, payeeID,
		periodStart, periodEnd,
		sharedDomain.MustMoney(gross, currency),
		sharedDomain.MustMoney(fees, currency),
		sharedDomain.MustMoney(net, currency),
		bankDetails,
		domain.PayoutStatus(status),
		stringValue(transferID),
		txIDs,
		stringValue(failureReason),
		scheduledAt,
		processedAt, completedAt, failedAt,
		createdAt, updatedAt,
	), nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
