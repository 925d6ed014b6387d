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

// PostgresContractRepository implements domain.ContractRepository using
// PostgreSQL. Stages are owned by the contract and written with it.
type PostgresContractRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresContractRepository creates a new PostgreSQL contract repository.
func NewPostgresContractRepository(pool *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{pool: pool}
}

// contractRow represents a database row for contracts.
type contractRow struct {
	ID                 uuid.UUID
	PayerID            uuid.UUID
	PayeeID            uuid.UUID
	Title              string
	Description        string
	TotalAmount        int64
	Currency           string
	FeeRateBps         int
	PlatformFee        int64
	PayeePayout        int64
	CancellationPolicy string
	ServiceDate        *time.Time
	ServiceLocation    string
	Status             string
	PayerAcceptedTerms bool
	PayeeAcceptedTerms bool
	CancelReason       *string
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const contractColumns = `id, payer_id, payee_id, title, description, total_amount, currency,
	fee_rate_bps, platform_fee, payee_payout, cancellation_policy, service_date,
	service_location, status, payer_accepted_terms, payee_accepted_terms, cancel_reason,
	confirmed_at, started_at, completed_at, cancelled_at, version, created_at, updated_at`

// Save persists a contract and its stages. When the context carries an
// open transaction the write joins it, otherwise a local one is opened.
func (r *PostgresContractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	if info, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		return r.saveWithTx(ctx, info.Tx, contract)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.saveWithTx(ctx, tx, contract); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresContractRepository) saveWithTx(ctx context.Context, tx pgx.Tx, contract *domain.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payer_accepted_terms = EXCLUDED.payer_accepted_terms,
			payee_accepted_terms = EXCLUDED.payee_accepted_terms,
			cancel_reason = EXCLUDED.cancel_reason,
			confirmed_at = EXCLUDED.confirmed_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			version = contracts.version + 1,
			updated_at = EXCLUDED.updated_at
	`

	var cancelReason *string
	if contract.CancelReason() != "" {
		reason := contract.CancelReason()
		cancelReason = &reason
	}

	_, err := tx.Exec(ctx, query,
		contract.ID(),
		contract.PayerID(),
		contract.PayeeID(),
		contract.Title(),
		contract.Description(),
		contract.TotalAmount().Amount(),
		contract.TotalAmount().Currency(),
		contract.FeeRateBps(),
		contract.PlatformFee().Amount(),
		contract.PayeePayout().Amount(),
		string(contract.CancellationPolicy()),
		contract.ServiceDate(),
		contract.ServiceLocation(),
		string(contract.Status()),
		contract.PayerAcceptedTerms(),
		contract.PayeeAcceptedTerms(),
		cancelReason,
		contract.ConfirmedAt(),
		contract.StartedAt(),
		contract.CompletedAt(),
		contract.CancelledAt(),
		contract.Version(),
		contract.CreatedAt(),
		contract.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	for _, stage := range contract.Stages() {
		stageQuery := `
			INSERT INTO contract_stages (id, contract_id, name, order_index, amount, currency, status, paid_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				paid_at = EXCLUDED.paid_at,
				updated_at = EXCLUDED.updated_at
		`
		_, err = tx.Exec(ctx, stageQuery,
			stage.ID(),
			stage.ContractID(),
			string(stage.Name()),
			stage.OrderIndex(),
			stage.Amount().Amount(),
			stage.Amount().Currency(),
			string(stage.Status()),
			stage.PaidAt(),
			stage.CreatedAt(),
			stage.UpdatedAt(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByID retrieves a contract with its stages. Returns nil when absent.
func (r *PostgresContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	row, err := scanContractRow(exec.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	stages, err := r.loadStages(ctx, exec, row.ID)
	if err != nil {
		return nil, err
	}
	return rowToContract(row, stages), nil
}

// FindByParty lists contracts where the user is payer or payee, newest first.
func (r *PostgresContractRepository) FindByParty(ctx context.Context, userID uuid.UUID) ([]*domain.Contract, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	rows, err := exec.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE payer_id = $1 OR payee_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		row, err := scanContractRow(rows)
		if err != nil {
			return nil, err
		}
		stages, err := r.loadStages(ctx, exec, row.ID)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, rowToContract(row, stages))
	}
	return contracts, rows.Err()
}

func (r *PostgresContractRepository) loadStages(ctx context.Context, exec sharedPersistence.DBExecutor, contractID uuid.UUID) ([]*domain.Stage, error) {
	rows, err := exec.Query(ctx, `
		SELECT id, contract_id, name, order_index, amount, currency, status, paid_at, created_at, updated_at
		FROM contract_stages WHERE contract_id = $1 ORDER BY order_index`,
		contractID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []*domain.Stage
	for rows.Next() {
		var (
			id, cID              uuid.UUID
			name, status         string
			orderIndex           int
			amount               int64
			currency             string
			paidAt               *time.Time
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &cID, &name, &orderIndex, &amount, &currency, &status, &paidAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		stages = append(stages, domain.RehydrateStage(
			id, cID,
			domain.StageName(name),
			orderIndex,
			sharedDomain.MustMoney(amount, currency),
			domain.StageStatus(status),
			paidAt,
			createdAt, updatedAt,
		))
	}
	return stages, rows.Err()
}

func scanContractRow(row pgx.Row) (contractRow, error) {
	var r contractRow
	err := row.Scan(
		&r.ID, &r.PayerID, &r.PayeeID, &r.Title, &r.Description,
		&r.TotalAmount, &r.Currency, &r.FeeRateBps, &r.PlatformFee, &r.PayeePayout,
		&r.CancellationPolicy, &r.ServiceDate, &r.ServiceLocation, &r.Status,
		&r.PayerAcceptedTerms, &r.PayeeAcceptedTerms, &r.CancelReason,
		&r.ConfirmedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func rowToContract(row contractRow, stages []*domain.Stage) *domain.Contract {
	cancelReason := ""
	if row.CancelReason != nil {
		cancelReason = *row.CancelReason
	}
	return domain.RehydrateContract(
		row.ID,
		row.PayerID, row.PayeeID,
		row.Title, row.Description,
		sharedDomain.MustMoney(row.TotalAmount, row.Currency),
		row.FeeRateBps,
		sharedDomain.MustMoney(row.PlatformFee, row.Currency),
		sharedDomain.MustMoney(row.PayeePayout, row.Currency),
		domain.CancellationPolicy(row.CancellationPolicy),
		row.ServiceDate,
		row.ServiceLocation,
		domain.ContractStatus(row.Status),
		row.PayerAcceptedTerms, row.PayeeAcceptedTerms,
		cancelReason,
		row.ConfirmedAt, row.StartedAt, row.CompletedAt, row.CancelledAt,
		stages,
		row.Version,
		row.CreatedAt, row.UpdatedAt,
	)
}
