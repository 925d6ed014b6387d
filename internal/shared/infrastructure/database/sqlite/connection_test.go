package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()

	conn, err := NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "trustline.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewConnection(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	require.NoError(t, conn.Ping(ctx))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestNewConnectionCreatesDirectory(t *testing.T) {
	// The database file lives in a directory that does not exist yet,
	// as on a user's first run.
	path := filepath.Join(t.TempDir(), "nested", "state", "trustline.db")

	conn, err := NewConnection(context.Background(), database.Config{SQLitePath: path})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Ping(context.Background()))
}

func TestConnectionExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `CREATE TABLE payees (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	result, err := conn.Exec(ctx, `INSERT INTO payees (id, name) VALUES (?, ?)`, "p1", "Kim Minji")
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	var id, name string
	require.NoError(t, conn.QueryRow(ctx, `SELECT id, name FROM payees WHERE id = ?`, "p1").Scan(&id, &name))
	assert.Equal(t, "p1", id)
	assert.Equal(t, "Kim Minji", name)

	_, err = conn.Exec(ctx, `INSERT INTO payees (id, name) VALUES (?, ?)`, "p2", "Lee Jun")
	require.NoError(t, err)

	rows, err := conn.Query(ctx, `SELECT name FROM payees ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Kim Minji", "Lee Jun"}, names)
}

func TestConnectionTransaction(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `CREATE TABLE payees (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	t.Run("commit persists", func(t *testing.T) {
		tx, err := conn.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.Exec(ctx, `INSERT INTO payees (id, name) VALUES (?, ?)`, "p1", "Kim Minji")
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		var name string
		require.NoError(t, conn.QueryRow(ctx, `SELECT name FROM payees WHERE id = ?`, "p1").Scan(&name))
		assert.Equal(t, "Kim Minji", name)
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := conn.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.Exec(ctx, `INSERT INTO payees (id, name) VALUES (?, ?)`, "p2", "Lee Jun")
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(ctx))

		var count int
		require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM payees`).Scan(&count))
		assert.Equal(t, 1, count)
	})
}
