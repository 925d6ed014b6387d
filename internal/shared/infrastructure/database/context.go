package database

import "context"

type txKey struct{}

// TxInfo is the transaction stored in context plus whether the current
// unit of work opened it. Nested units reuse the outer transaction and
// leave commit and rollback to its owner.
type TxInfo struct {
	Tx    Transaction
	Owned bool
}

// WithTx stores a transaction in the context.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxFromContext returns the transaction in the context, or nil.
func TxFromContext(ctx context.Context) Transaction {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return nil
	}
	return info.Tx
}

// TxInfoFromContext returns the transaction and its ownership flag.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// ExecutorFromContext returns the transaction when one is open, else
// the plain connection, so repositories work the same inside and
// outside a unit of work.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}
