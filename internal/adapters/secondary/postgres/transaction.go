package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
)

// TransactionManager handles database transactions
type TransactionManager struct {
	pool *pgxpool.Pool
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	return &TransactionManager{pool: pool}
}

// WithSerializable executes a function within a SERIALIZABLE transaction.
// The transaction is stored in the context so repositories called inside fn
// run their queries against it. If the function returns an error, the
// transaction is rolled back. Serialization conflicts and connection
// failures surface as a retryable store error.
func (tm *TransactionManager) WithSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := tm.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.Serializable,
	})
	if err != nil {
		return classifyStoreError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			// Rollback on panic
			_ = tx.Rollback(ctx)
			panic(p) // Re-throw panic after rollback
		}
	}()

	txCtx := ContextWithTx(ctx, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx failed: %v, rollback failed: %w", err, rbErr)
		}
		return classifyStoreError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyStoreError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// Postgres error codes that indicate the transaction can be retried as-is.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	// Class 23 — integrity constraint violation. Under SERIALIZABLE the only
	// way our insert hits a unique or foreign-key violation is a concurrent
	// transaction committing first, so a retry sees the new state and
	// resolves cleanly.
	pgConstraintViolationClass = "23"
)

// classifyStoreError wraps transient database failures so callers can
// distinguish them from permanent ones.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected,
			strings.HasPrefix(pgErr.Code, pgConstraintViolationClass):
			return fmt.Errorf("%w: %v", apperrors.ErrTransientStore, err)
		}
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrTransientStore, err)
	}

	return err
}

// TxContext is a context key for storing transaction
type txContextKey struct{}

// ContextWithTx returns a new context with the transaction stored
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves a transaction from the context
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// DBTX is an interface that matches both *pgxpool.Pool and pgx.Tx
// This allows repositories to work with either a pool or a transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// GetDBTX returns the transaction from context if available, otherwise returns the pool
func GetDBTX(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}
