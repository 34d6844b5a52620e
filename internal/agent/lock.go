package agent

import "sync/atomic"

// IngestLock is a non-blocking try-lock guarding ingestion requests that
// must be rejected rather than queued.
type IngestLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IngestLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IngestLock) Release() {
	l.state.Store(0)
}
