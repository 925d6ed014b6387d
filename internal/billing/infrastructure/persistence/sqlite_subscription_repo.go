package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// sqliteDB is the subset of database/sql shared by *sql.DB and *sql.Tx.
type sqliteDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteSubscriptionRepository implements domain.SubscriptionRepository
// with SQLite, for single-binary local mode.
type SQLiteSubscriptionRepository struct {
	dbConn *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(dbConn *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{dbConn: dbConn}
}

func (r *SQLiteSubscriptionRepository) getDB(ctx context.Context) sqliteDB {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

const sqliteSubscriptionColumns = `id, user_id, plan_id, credential_ref,
	current_period_start, current_period_end, renews_at,
	retry_count, last_retry_at, next_retry_at, last_payment_error,
	status, created_at, updated_at`

// Save upserts a subscription.
func (r *SQLiteSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	db := r.getDB(ctx)

	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, credential_ref,
			current_period_start, current_period_end, renews_at,
			retry_count, last_retry_at, next_retry_at, last_payment_error,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			credential_ref = excluded.credential_ref,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			renews_at = excluded.renews_at,
			retry_count = excluded.retry_count,
			last_retry_at = excluded.last_retry_at,
			next_retry_at = excluded.next_retry_at,
			last_payment_error = excluded.last_payment_error,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		sub.ID().String(),
		sub.UserID().String(),
		sub.PlanID().String(),
		sub.CredentialRef(),
		sub.CurrentPeriodStart().UTC().Format(time.RFC3339),
		sub.CurrentPeriodEnd().UTC().Format(time.RFC3339),
		sub.RenewsAt().UTC().Format(time.RFC3339),
		sub.RetryCount(),
		sqliteTime(sub.LastRetryAt()),
		sqliteTime(sub.NextRetryAt()),
		sqliteString(sub.LastPaymentError()),
		string(sub.Status()),
		sub.CreatedAt().UTC().Format(time.RFC3339),
		sub.UpdatedAt().UTC().Format(time.RFC3339),
	)
	return err
}

// FindByID retrieves a subscription. Returns nil when absent.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := r.getDB(ctx).QueryRowContext(ctx,
		`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
	return scanSQLiteSubscription(row)
}

// FindByUser retrieves a user's subscription. Returns nil when absent.
func (r *SQLiteSubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := r.getDB(ctx).QueryRowContext(ctx,
		`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE user_id = ?`, userID.String())
	return scanSQLiteSubscription(row)
}

// FindDueForRenewal returns active subscriptions renewing on the given
// day that are not waiting on a retry.
func (r *SQLiteSubscriptionRepository) FindDueForRenewal(ctx context.Context, day time.Time) ([]*domain.Subscription, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := r.getDB(ctx).QueryContext(ctx, `
		SELECT `+sqliteSubscriptionColumns+`
		FROM subscriptions
		WHERE status = ? AND next_retry_at IS NULL
			AND renews_at >= ? AND renews_at < ?
		ORDER BY renews_at`,
		string(domain.SubscriptionActive),
		dayStart.Format(time.RFC3339),
		dayStart.AddDate(0, 0, 1).Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteSubscriptions(rows)
}

// FindDueForRetry returns active subscriptions whose scheduled retry
// time has passed.
func (r *SQLiteSubscriptionRepository) FindDueForRetry(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	rows, err := r.getDB(ctx).QueryContext(ctx, `
		SELECT `+sqliteSubscriptionColumns+`
		FROM subscriptions
		WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at`,
		string(domain.SubscriptionActive),
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteSubscriptions(rows)
}

// FindActive returns every active subscription.
func (r *SQLiteSubscriptionRepository) FindActive(ctx context.Context) ([]*domain.Subscription, error) {
	rows, err := r.getDB(ctx).QueryContext(ctx, `
		SELECT `+sqliteSubscriptionColumns+`
		FROM subscriptions
		WHERE status = ?
		ORDER BY renews_at`,
		string(domain.SubscriptionActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteSubscriptions(rows)
}

type sqliteRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteSubscription(row sqliteRowScanner) (*domain.Subscription, error) {
	var (
		idStr, userIDStr, planIDStr    string
		credentialRef, status          string
		periodStartStr, periodEndStr   string
		renewsAtStr                    string
		retryCount                     int
		lastRetryAtStr, nextRetryAtStr sql.NullString
		lastPaymentError               sql.NullString
		createdAtStr, updatedAtStr     string
	)
	err := row.Scan(
		&idStr, &userIDStr, &planIDStr, &credentialRef,
		&periodStartStr, &periodEndStr, &renewsAtStr,
		&retryCount, &lastRetryAtStr, &nextRetryAtStr, &lastPaymentError,
		&status, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, err
	}
	planID, err := uuid.Parse(planIDStr)
	if err != nil {
		return nil, err
	}

	periodStart, _ := time.Parse(time.RFC3339, periodStartStr)
	periodEnd, _ := time.Parse(time.RFC3339, periodEndStr)
	renewsAt, _ := time.Parse(time.RFC3339, renewsAtStr)
	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)

	return domain.RehydrateSubscription(
		id, userID, planID, credentialRef,
		periodStart, periodEnd, renewsAt,
		retryCount,
		parseSQLiteTime(lastRetryAtStr),
		parseSQLiteTime(nextRetryAtStr),
		lastPaymentError.String,
		domain.SubscriptionStatus(status),
		createdAt, updatedAt,
	), nil
}

func scanSQLiteSubscriptions(rows *sql.Rows) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func sqliteTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func sqliteString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseSQLiteTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
