package db

import "context"

// TransactionFunc runs inside a transaction. Repositories called with the
// ctx it receives take part in that transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

// NoopTransactionManager runs fn directly. Used by stores whose writes are
// already serialised by the caller's key locks.
type NoopTransactionManager struct{}

func (NoopTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
