package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPlanRepository implements domain.PlanRepository using
// PostgreSQL.
type PostgresPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPlanRepository creates a new PostgreSQL plan repository.
func NewPostgresPlanRepository(pool *pgxpool.Pool) *PostgresPlanRepository {
	return &PostgresPlanRepository{pool: pool}
}

// Save upserts a plan.
func (r *PostgresPlanRepository) Save(ctx context.Context, plan *domain.Plan) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	_, err := exec.Exec(ctx, `
		INSERT INTO plans (id, name, price, currency, interval_months, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			interval_months = EXCLUDED.interval_months,
			updated_at = EXCLUDED.updated_at`,
		plan.ID(),
		plan.Name(),
		plan.Price().Amount(),
		plan.Price().Currency(),
		plan.IntervalMonths(),
		plan.CreatedAt(),
		plan.UpdatedAt(),
	)
	return err
}

// FindByID retrieves a plan. Returns nil when absent.
func (r *PostgresPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)

	var (
		name                 string
		price                int64
		currency             string
		intervalMonths       int
		createdAt, updatedAt time.Time
	)
	err := exec.QueryRow(ctx, `
		SELECT name, price, currency, interval_months, created_at, updated_at
		FROM plans WHERE id = $1`, id,
	).Scan(&name, &price, &currency, &intervalMonths, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydratePlan(id, name, sharedDomain.MustMoney(price, currency), intervalMonths, createdAt, updatedAt), nil
}

var _ domain.PlanRepository = (*PostgresPlanRepository)(nil)
