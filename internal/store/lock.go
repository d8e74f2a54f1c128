package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocking acquire re-attempts the flock.
const lockRetryDelay = 250 * time.Millisecond

// CrawlLock is an advisory file lock that keeps two crawls from writing
// the same index at once. SQLite itself serializes writers, but a second
// concurrent crawl would interleave batches and waste extraction work;
// the lock fails fast instead.
type CrawlLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewCrawlLock creates a lock handle for the given lock file path. The
// lock is not acquired until TryLock or Lock.
func NewCrawlLock(path string) *CrawlLock {
	return &CrawlLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *CrawlLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	l.locked = locked
	return locked, nil
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *CrawlLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s not acquired", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *CrawlLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	l.locked = false
	return nil
}

// Locked reports whether this handle currently holds the lock.
func (l *CrawlLock) Locked() bool {
	return l.locked
}

// Path returns the lock file path.
func (l *CrawlLock) Path() string {
	return l.path
}
