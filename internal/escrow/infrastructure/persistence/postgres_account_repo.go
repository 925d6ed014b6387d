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

// PostgresAccountRepository implements domain.AccountRepository using
// PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Save upserts an account. The (user_id, role) unique constraint makes
// lazy creation race-safe.
func (r *PostgresAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	query := `
		INSERT INTO escrow_accounts (id, user_id, role, available, pending, withdrawable,
			currency, status, kyc_status, bank_code, bank_account_number, bank_account_holder,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, role) DO UPDATE SET
			available = EXCLUDED.available,
			pending = EXCLUDED.pending,
			withdrawable = EXCLUDED.withdrawable,
			status = EXCLUDED.status,
			kyc_status = EXCLUDED.kyc_status,
			bank_code = EXCLUDED.bank_code,
			bank_account_number = EXCLUDED.bank_account_number,
			bank_account_holder = EXCLUDED.bank_account_holder,
			updated_at = EXCLUDED.updated_at
	`
	details := account.BankDetails()
	_, err := exec.Exec(ctx, query,
		account.ID(),
		account.UserID(),
		string(account.Role()),
		account.Available().Amount(),
		account.Pending().Amount(),
		account.Withdrawable().Amount(),
		account.Available().Currency(),
		string(account.Status()),
		string(account.KYCStatus()),
		details.BankCode(),
		details.AccountNumber(),
		details.AccountHolderName(),
		account.CreatedAt(),
		account.UpdatedAt(),
	)
	return err
}

// FindByUserAndRole retrieves an account. Returns nil when absent.
func (r *PostgresAccountRepository) FindByUserAndRole(ctx context.Context, userID uuid.UUID, role domain.AccountRole) (*domain.Account, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	var (
		id                               uuid.UUID
		available, pending, withdrawable int64
		currency, status, kycStatus      string
		bankCode, bankNumber, bankHolder string
		createdAt, updatedAt             time.Time
	)
	err := exec.QueryRow(ctx, `
		SELECT id, available, pending, withdrawable, currency, status, kyc_status,
			bank_code, bank_account_number, bank_account_holder, created_at, updated_at
		FROM escrow_accounts WHERE user_id = $1 AND role = $2`,
		userID, string(role),
	).Scan(
		&id, &available, &pending, &withdrawable, &currency, &status, &kycStatus,
		&bankCode, &bankNumber, &bankHolder, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	bankDetails, _ := sharedDomain.NewBankDetails(bankCode, bankNumber, bankHolder)
	return domain.RehydrateAccount(
		id, userID,
		role,
		sharedDomain.MustMoney(available, currency),
		sharedDomain.MustMoney(pending, currency),
		sharedDomain.MustMoney(withdrawable, currency),
		domain.AccountStatus(status),
		domain.KYCStatus(kycStatus),
		bankDetails,
		createdAt, updatedAt,
	), nil
}
