package locks

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	txcontext "casework/pkg/platform/tx"
)

// AdvisoryLocker is the postgres Coordinator. It takes a transaction-scoped
// advisory lock keyed by the aggregate id, so the lock is released when the
// surrounding unit of work commits or rolls back. Callers must carry the
// transaction in context via pkg/platform/tx.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// lockKey folds the aggregate uuid into the bigint keyspace pg_advisory_lock
// expects. XOR of both halves keeps collisions negligible for our volumes.
func lockKey(aggregateID uuid.UUID) int64 {
	hi := binary.BigEndian.Uint64(aggregateID[:8])
	lo := binary.BigEndian.Uint64(aggregateID[8:])
	return int64(hi ^ lo)
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, aggregateID uuid.UUID) (func(), error) {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return nil, fmt.Errorf("advisory lock for %s: no transaction in context", aggregateID)
	}

	// Blocks until the lock is granted or ctx/tx dies. Released by the
	// database at transaction end, hence the no-op release.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(aggregateID)); err != nil {
		return nil, fmt.Errorf("advisory lock for %s: %w", aggregateID, err)
	}
	return func() {}, nil
}
