package app

import (
	"database/sql"
	"fmt"

	billingDomain "github.com/felixgeelhaar/trustline/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/trustline/internal/billing/infrastructure/persistence"
	escrowDomain "github.com/felixgeelhaar/trustline/internal/escrow/domain"
	escrowPersistence "github.com/felixgeelhaar/trustline/internal/escrow/infrastructure/persistence"
	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	settlementPersistence "github.com/felixgeelhaar/trustline/internal/settlement/infrastructure/persistence"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryFactory creates repositories based on the database driver.
// Billing and the outbox run on either driver; the escrow ledger and
// settlement need PostgreSQL.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// SubscriptionRepository creates a subscription repository for the configured driver.
func (f *RepositoryFactory) SubscriptionRepository() (billingDomain.SubscriptionRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewPostgresSubscriptionRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewSQLiteSubscriptionRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// PlanRepository creates a plan repository for the configured driver.
func (f *RepositoryFactory) PlanRepository() (billingDomain.PlanRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewPostgresPlanRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return billingPersistence.NewSQLitePlanRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return outbox.NewPostgresRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return outbox.NewSQLiteRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// ContractRepository creates a contract repository. Postgres only.
func (f *RepositoryFactory) ContractRepository() (escrowDomain.ContractRepository, error) {
	pool, err := f.requirePostgres("contract repository")
	if err != nil {
		return nil, err
	}
	return escrowPersistence.NewPostgresContractRepository(pool), nil
}

// TransactionRepository creates an escrow transaction repository. Postgres only.
func (f *RepositoryFactory) TransactionRepository() (escrowDomain.TransactionRepository, error) {
	pool, err := f.requirePostgres("transaction repository")
	if err != nil {
		return nil, err
	}
	return escrowPersistence.NewPostgresTransactionRepository(pool), nil
}

// AccountRepository creates an account repository. Postgres only.
func (f *RepositoryFactory) AccountRepository() (escrowDomain.AccountRepository, error) {
	pool, err := f.requirePostgres("account repository")
	if err != nil {
		return nil, err
	}
	return escrowPersistence.NewPostgresAccountRepository(pool), nil
}

// PayoutRepository creates a payout repository. Postgres only.
func (f *RepositoryFactory) PayoutRepository() (settlementDomain.PayoutRepository, error) {
	pool, err := f.requirePostgres("payout repository")
	if err != nil {
		return nil, err
	}
	return settlementPersistence.NewPostgresPayoutRepository(pool), nil
}

// RunRepository creates a settlement run repository. Postgres only.
func (f *RepositoryFactory) RunRepository() (settlementDomain.RunRepository, error) {
	pool, err := f.requirePostgres("settlement run repository")
	if err != nil {
		return nil, err
	}
	return settlementPersistence.NewPostgresRunRepository(pool), nil
}

// RunLock creates the cross-instance settlement lease. Postgres only.
func (f *RepositoryFactory) RunLock() (settlementDomain.RunLock, error) {
	pool, err := f.requirePostgres("settlement run lock")
	if err != nil {
		return nil, err
	}
	return settlementPersistence.NewPostgresRunLock(pool), nil
}

// Helper methods to get underlying database connections

func (f *RepositoryFactory) requirePostgres(what string) (*pgxpool.Pool, error) {
	if f.driver != database.DriverPostgres {
		return nil, fmt.Errorf("%s requires postgres, configured driver is %s", what, f.driver)
	}
	return f.getPostgresPool()
}

func (f *RepositoryFactory) getPostgresPool() (*pgxpool.Pool, error) {
	pgConn, ok := f.conn.(interface{ Pool() *pgxpool.Pool })
	if !ok {
		return nil, fmt.Errorf("postgres connection does not expose Pool()")
	}
	return pgConn.Pool(), nil
}

func (f *RepositoryFactory) getSQLiteDB() (*sql.DB, error) {
	sqliteConn, ok := f.conn.(interface{ DB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("sqlite connection does not expose DB()")
	}
	return sqliteConn.DB(), nil
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Connection returns the underlying database connection.
func (f *RepositoryFactory) Connection() database.Connection {
	return f.conn
}
