// Package lock provides a mutex whose acquisition can give up. Callers on
// the game path treat a failed acquisition as "no update this time".
package lock

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

type Timed struct {
	sem *semaphore.Weighted
}

func NewTimed() *Timed {
	return &Timed{sem: semaphore.NewWeighted(1)}
}

// TryLock never waits.
func (l *Timed) TryLock() bool {
	return l.sem.TryAcquire(1)
}

// LockWithin waits at most d for the lock.
func (l *Timed) LockWithin(d time.Duration) bool {
	if l.sem.TryAcquire(1) {
		return true
	}
	if d <= 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return l.sem.Acquire(ctx, 1) == nil
}

// Lock waits as long as it takes.
func (l *Timed) Lock() {
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *Timed) Unlock() {
	l.sem.Release(1)
}
