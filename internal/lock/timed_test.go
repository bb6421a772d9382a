package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockContended(t *testing.T) {
	l := NewTimed()
	require.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
}

func TestLockWithinGivesUp(t *testing.T) {
	l := NewTimed()
	require.True(t, l.TryLock())

	start := time.Now()
	assert.False(t, l.LockWithin(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestLockWithinAcquiresAfterRelease(t *testing.T) {
	l := NewTimed()
	require.True(t, l.TryLock())

	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Unlock()
	}()
	assert.True(t, l.LockWithin(time.Second))
}

func TestLockWaitsForRelease(t *testing.T) {
	l := NewTimed()
	l.Lock()

	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while held")
	case <-time.After(20 * time.Millisecond):
	}
	l.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Lock did not acquire after release")
	}
}
