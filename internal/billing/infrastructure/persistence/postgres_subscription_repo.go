package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `id, user_id, plan_id, credential_ref,
	current_period_start, current_period_end, renews_at,
	retry_count, last_retry_at, next_retry_at, last_payment_error,
	status, created_at, updated_at`

// PostgresSubscriptionRepository implements domain.SubscriptionRepository
// using PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription
// repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Save upserts a subscription.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	exec := sharedPersistence.Executor(ctx, r.pool)

	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, credential_ref,
			current_period_start, current_period_end, renews_at,
			retry_count, last_retry_at, next_retry_at, last_payment_error,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			credential_ref = EXCLUDED.credential_ref,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			renews_at = EXCLUDED.renews_at,
			retry_count = EXCLUDED.retry_count,
			last_retry_at = EXCLUDED.last_retry_at,
			next_retry_at = EXCLUDED.next_retry_at,
			last_payment_error = EXCLUDED.last_payment_error,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	var lastPaymentError *string
	if sub.LastPaymentError() != "" {
		s := sub.LastPaymentError()
		lastPaymentError = &s
	}
	_, err := exec.Exec(ctx, query,
		sub.ID(),
		sub.UserID(),
		sub.PlanID(),
		sub.CredentialRef(),
		sub.CurrentPeriodStart(),
		sub.CurrentPeriodEnd(),
		sub.RenewsAt(),
		sub.RetryCount(),
		sub.LastRetryAt(),
		sub.NextRetryAt(),
		lastPaymentError,
		string(sub.Status()),
		sub.CreatedAt(),
		sub.UpdatedAt(),
	)
	return err
}

// FindByID retrieves a subscription. Returns nil when absent.
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// FindByUser retrieves a user's subscription. Returns nil when absent.
func (r *PostgresSubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	return scanSubscription(row)
}

// FindDueForRenewal returns active subscriptions renewing on the given
// day that are not waiting on a retry.
func (r *PostgresSubscriptionRepository) FindDueForRenewal(ctx context.Context, day time.Time) ([]*domain.Subscription, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rows, err := exec.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = $1 AND next_retry_at IS NULL
			AND renews_at >= $2 AND renews_at < $3
		ORDER BY renews_at`,
		string(domain.SubscriptionActive), dayStart, dayStart.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// FindDueForRetry returns active subscriptions whose scheduled retry
// time has passed.
func (r *PostgresSubscriptionRepository) FindDueForRetry(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = $1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		ORDER BY next_retry_at`,
		string(domain.SubscriptionActive), now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// FindActive returns every active subscription.
func (r *PostgresSubscriptionRepository) FindActive(ctx context.Context) ([]*domain.Subscription, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = $1
		ORDER BY renews_at`,
		string(domain.SubscriptionActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		id, userID, planID       uuid.UUID
		credentialRef, status    string
		periodStart, periodEnd   time.Time
		renewsAt                 time.Time
		retryCount               int
		lastRetryAt, nextRetryAt *time.Time
		lastPaymentError         *string
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(
		&id, &userID, &planID, &credentialRef,
		&periodStart, &periodEnd, &renewsAt,
		&retryCount, &lastRetryAt, &nextRetryAt, &lastPaymentError,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	paymentError := ""
	if lastPaymentError != nil {
		paymentError = *lastPaymentError
	}
	return domain.RehydrateSubscription(
		id, userID, planID, credentialRef,
		periodStart, periodEnd, renewsAt,
		retryCount, lastRetryAt, nextRetryAt, paymentError,
		domain.SubscriptionStatus(status),
		createdAt, updatedAt,
	), nil
}

func scanSubscriptions(rows pgx.Rows) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
