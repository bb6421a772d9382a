// Package clock abstracts the millisecond time source used by the game
// core so tests can step time by hand.
package clock

import (
	"sync/atomic"
	"time"
)

type Clock interface {
	NowMs() int64
}

type system struct{ start time.Time }

// System returns a monotonic clock counting from its creation. The zero
// value is reserved for "never", so the first reading is 1.
func System() Clock { return system{start: time.Now().Add(-time.Millisecond)} }

func (s system) NowMs() int64 { return time.Since(s.start).Milliseconds() }

type Manual struct {
	ms atomic.Int64
}

func NewManual(startMs int64) *Manual {
	m := &Manual{}
	m.ms.Store(startMs)
	return m
}

func (m *Manual) NowMs() int64 { return m.ms.Load() }

func (m *Manual) Advance(d time.Duration) int64 { return m.ms.Add(d.Milliseconds()) }

func (m *Manual) Set(ms int64) { m.ms.Store(ms) }
