package transaction

import (
	"context"

	"gorm.io/gorm"
)

// txContextKey keys the active transaction inside a context.
type txContextKey struct{}

// WithTransaction injects the transaction into the context so repositories
// down the call chain join it transparently.
func WithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// GetTransactionOrDB returns the context transaction when present, otherwise
// the plain connection.
func GetTransactionOrDB(ctx context.Context, defaultDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return defaultDB.WithContext(ctx)
}
