package indexer

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// IndexLock provides non-blocking lock semantics using atomic operations,
// guarding against two passes running inside the same process.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// lockStorageDir takes an advisory file lock on the storage directory so two
// processes cannot index into the same store concurrently.
func lockStorageDir(dir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dir, ".semcode.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock storage dir %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("storage dir %s is locked by another process", dir)
	}
	return fl, nil
}
