package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a lock using the best available backend.
// Redis is preferred for cross-host locking, then PostgreSQL advisory locks.
// With neither available the lock only excludes callers in this process,
// which is sufficient for the single-instance memory store.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped.
// The lock is automatically released if the DB connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// Advisory locks belong to a session, so the lock pins one pooled
// connection between Acquire and Release.
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

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
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

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

// =============================================================================
// In-process lock (no shared backend configured)
// =============================================================================

var (
	localMu    sync.Mutex
	localLocks = map[string]*sync.Mutex{}
)

// LocalLock implements DistLock with a process-wide mutex per key.
type LocalLock struct {
	mu   *sync.Mutex
	held bool
}

// NewLocalLock returns a lock shared by every LocalLock with the same key.
func NewLocalLock(key string) *LocalLock {
	localMu.Lock()
	defer localMu.Unlock()
	mu, ok := localLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		localLocks[key] = mu
	}
	return &LocalLock{mu: mu}
}

// Acquire tries the mutex without blocking.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	if l.mu.TryLock() {
		l.held = true
		return true, nil
	}
	return false, nil
}

// Release unlocks the mutex if this instance holds it.
func (l *LocalLock) Release(_ context.Context) error {
	if l.held {
		l.held = false
		l.mu.Unlock()
	}
	return nil
}
