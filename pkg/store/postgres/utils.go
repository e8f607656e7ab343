package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"

	"github.com/uptrace/bun"

	"github.com/telerag/telerag/pkg/store"
)

// generateLockID creates a deterministic advisory lock id for a key.
func generateLockID(key string) uint64 {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hash := hasher.Sum(nil)
	return binary.BigEndian.Uint64(hash[:8])
}

// acquireAdvisoryXactLock acquires a transaction-scoped PostgreSQL advisory
// lock for the given key. Advisory locks are session-scoped, so the lock must
// be taken and released on the same connection: a transaction-scoped lock is
// released automatically at commit or rollback, which guarantees this even
// when connections come from a pool.
func acquireAdvisoryXactLock(ctx context.Context, tx bun.Tx, key string) error {
	lockID := generateLockID(key)

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", lockID); err != nil {
		return store.NewStorageError("failed to acquire advisory lock", err)
	}

	return nil
}

// rollbackOnError rolls back the transaction if an error is encountered.
// If the error is sql.ErrTxDone, the transaction has already been committed
// or rolled back and we ignore the error.
func rollbackOnError(tx bun.Tx) {
	if rollBackErr := tx.Rollback(); rollBackErr != nil && !errors.Is(rollBackErr, sql.ErrTxDone) {
		log.Error("failed to rollback transaction", rollBackErr)
	}
}
