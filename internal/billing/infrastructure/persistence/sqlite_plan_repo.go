package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLitePlanRepository implements domain.PlanRepository with SQLite,
// for single-binary local mode.
type SQLitePlanRepository struct {
	dbConn *sql.DB
}

// NewSQLitePlanRepository creates a new repository.
func NewSQLitePlanRepository(dbConn *sql.DB) *SQLitePlanRepository {
	return &SQLitePlanRepository{dbConn: dbConn}
}

func (r *SQLitePlanRepository) getDB(ctx context.Context) sqliteDB {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

// Save upserts a plan.
func (r *SQLitePlanRepository) Save(ctx context.Context, plan *domain.Plan) error {
	_, err := r.getDB(ctx).ExecContext(ctx, `
		INSERT INTO plans (id, name, price, currency, interval_months, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			currency = excluded.currency,
			interval_months = excluded.interval_months,
			updated_at = excluded.updated_at`,
		plan.ID().String(),
		plan.Name(),
		plan.Price().Amount(),
		plan.Price().Currency(),
		plan.IntervalMonths(),
		plan.CreatedAt().UTC().Format(time.RFC3339),
		plan.UpdatedAt().UTC().Format(time.RFC3339),
	)
	return err
}

// FindByID retrieves a plan. Returns nil when absent.
func (r *SQLitePlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	var (
		name                       string
		price                      int64
		currency                   string
		intervalMonths             int
		createdAtStr, updatedAtStr string
	)
	err := r.getDB(ctx).QueryRowContext(ctx, `
		SELECT name, price, currency, interval_months, created_at, updated_at
		FROM plans WHERE id = ?`, id.String(),
	).Scan(&name, &price, &currency, &intervalMonths, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)
	return domain.RehydratePlan(id, name, sharedDomain.MustMoney(price, currency), intervalMonths, createdAt, updatedAt), nil
}

var _ domain.PlanRepository = (*SQLitePlanRepository)(nil)
