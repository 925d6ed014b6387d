package application

import "context"

// UnitOfWork scopes a set of repository writes to one database
// transaction. Command handlers run their ledger writes and outbox
// appends inside a single unit so partial state is never visible.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is the body executed within a unit of work. The
// context it receives carries the open transaction.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn in a transaction, committing on nil error and
// rolling back otherwise. The fn error is returned as-is so domain
// error codes survive.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}
