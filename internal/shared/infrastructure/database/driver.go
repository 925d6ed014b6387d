package database

import "strings"

// Driver identifies the storage backend. Postgres carries the full
// escrow ledger and settlement; sqlite covers the single-binary local
// mode, which is limited to billing and the outbox.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// DetectDriver infers the driver from a connection string. An empty
// URL means zero-config local mode, so it maps to sqlite.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}

	if strings.HasPrefix(url, "sqlite://") ||
		strings.HasPrefix(url, "file:") ||
		strings.HasSuffix(url, ".db") ||
		strings.HasSuffix(url, ".sqlite") ||
		strings.HasSuffix(url, ".sqlite3") {
		return DriverSQLite
	}

	// Bare DSNs (host=... user=...) are postgres.
	return DriverPostgres
}

// IsValid reports whether the driver is a known backend.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverSQLite:
		return true
	default:
		return false
	}
}
