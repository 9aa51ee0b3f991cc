// Package distlock serializes automation runs per workspace. A full
// applyAutomation pass issues dozens of remote writes; two concurrent runs
// for the same workspace would interleave campaign and ad reconciliation.
// The store's upserts converge eventually either way, so lock failures are
// treated as advisory by callers, not fatal.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking. Implementations are
// intended for use from a single goroutine; concurrent use across goroutines
// requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// With a Redis client it uses SET NX + TTL (preferred for cross-host
// locking); otherwise it falls back to a PostgreSQL advisory lock on the
// same connection pool the store uses.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// WorkspaceRunKey returns the canonical lock key for one workspace's
// automation run.
func WorkspaceRunKey(workspaceID string) string {
	return "mlads:automation:" + workspaceID
}

// PGAdvisoryLock implements DistLock using pg_try_advisory_lock. Advisory
// locks are session-scoped, so the lock pins one pooled connection from
// Acquire until Release; if that connection dies the lock drops
// automatically, giving crash-safety similar to a Redis TTL.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries the advisory lock without blocking. Returns true on success.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns its connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
