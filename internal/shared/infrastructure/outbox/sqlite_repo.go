package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// sqliteDB is the subset of database/sql shared by *sql.DB and *sql.Tx.
type sqliteDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteRepository implements Repository with SQLite, for single-binary
// local mode. Timestamps are stored as RFC3339 strings so lexicographic
// comparison matches chronological order.
type SQLiteRepository struct {
	dbConn *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(dbConn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{dbConn: dbConn}
}

func (r *SQLiteRepository) getDB(ctx context.Context) sqliteDB {
	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return r.dbConn
}

const sqliteOutboxColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
	payload, metadata, created_at, published_at, next_retry_at, retry_count,
	last_error, dead_lettered_at, dead_letter_reason`

const sqliteInsertOutbox = `
	INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type,
		routing_key, payload, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func insertMessage(ctx context.Context, db sqliteDB, msg *Message) error {
	result, err := db.ExecContext(ctx, sqliteInsertOutbox,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		sqliteRawJSON(msg.Metadata),
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	msg.ID, err = result.LastInsertId()
	return err
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	return insertMessage(ctx, r.getDB(ctx), msg)
}

// SaveBatch stores multiple outbox messages atomically. When the context
// carries a unit-of-work transaction the messages join it, otherwise the
// batch runs in its own transaction.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	if info, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		for _, msg := range msgs {
			if err := insertMessage(ctx, info.Tx, msg); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := r.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetUnpublished retrieves unpublished messages ordered by creation time.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.getDB(ctx).QueryContext(ctx, `
		SELECT `+sqliteOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
			AND dead_lettered_at IS NULL
			AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at
		LIMIT ?`,
		time.Now().UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteMessages(rows)
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.getDB(ctx).ExecContext(ctx, `
		UPDATE outbox
		SET published_at = ?, dead_lettered_at = NULL
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.getDB(ctx).ExecContext(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
			last_error = ?,
			next_retry_at = ?
		WHERE id = ?`,
		errMsg, nextRetryAt.UTC().Format(time.RFC3339), id,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.getDB(ctx).ExecContext(ctx, `
		UPDATE outbox
		SET dead_lettered_at = ?,
			dead_letter_reason = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), reason, id,
	)
	return err
}

// GetFailed retrieves failed messages eligible for retry.
func (r *SQLiteRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error) {
	rows, err := r.getDB(ctx).QueryContext(ctx, `
		SELECT `+sqliteOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
			AND dead_lettered_at IS NULL
			AND retry_count > 0
			AND retry_count < ?
			AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at
		LIMIT ?`,
		maxRetries, time.Now().UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteMessages(rows)
}

// DeleteOld removes successfully published messages older than the retention period.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	result, err := r.getDB(ctx).ExecContext(ctx, `
		DELETE FROM outbox
		WHERE published_at IS NOT NULL
			AND published_at < ?`,
		cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSQLiteMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type sqliteMessageScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteMessage(row sqliteMessageScanner) (*Message, error) {
	var (
		eventIDStr, aggregateIDStr          string
		payload, createdAtStr               string
		metadata, lastError                 sql.NullString
		publishedAtStr, nextRetryAtStr      sql.NullString
		deadLetteredAtStr, deadLetterReason sql.NullString
	)
	msg := &Message{}
	err := row.Scan(
		&msg.ID, &eventIDStr, &msg.AggregateType, &aggregateIDStr,
		&msg.EventType, &msg.RoutingKey, &payload, &metadata,
		&createdAtStr, &publishedAtStr, &nextRetryAtStr, &msg.RetryCount,
		&lastError, &deadLetteredAtStr, &deadLetterReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	msg.EventID, _ = uuid.Parse(eventIDStr)
	msg.AggregateID, _ = uuid.Parse(aggregateIDStr)
	msg.Payload = json.RawMessage(payload)
	if metadata.Valid {
		msg.Metadata = json.RawMessage(metadata.String)
	}
	msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	msg.PublishedAt = parseOutboxTime(publishedAtStr)
	msg.NextRetryAt = parseOutboxTime(nextRetryAtStr)
	if lastError.Valid {
		msg.LastError = &lastError.String
	}
	msg.DeadLetteredAt = parseOutboxTime(deadLetteredAtStr)
	if deadLetterReason.Valid {
		msg.DeadLetterReason = &deadLetterReason.String
	}
	return msg, nil
}

func sqliteRawJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func parseOutboxTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

var _ Repository = (*SQLiteRepository)(nil)
