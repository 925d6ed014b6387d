package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNoRows is the driver-neutral empty-result sentinel. Repositories
// translate it into nil-nil or a domain not_found error.
var ErrNoRows = errors.New("no rows in result set")

// IsNoRows matches the empty-result errors of both drivers.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}
