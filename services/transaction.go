package services

import (
	"context"

	"github.com/proppicks/auth-gateway/repositories"
)

// WithTransactionResult runs fn inside txMgr.InTransaction and returns its result.
// The result is discarded when the transaction does not commit.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		r, err := fn(txCtx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
