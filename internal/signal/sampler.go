// Package signal holds the most recent link-layer signal strength reading.
//
// The radio reports RSSI separately from payload delivery, so a Sample is
// only associated with a packet by being the latest reading at the time the
// packet is dequeued. It is an approximation, not a per-packet value.
package signal

import (
	"time"

	"github.com/DoyleJ11/zombie-proximity/internal/clock"
	"github.com/DoyleJ11/zombie-proximity/internal/lock"
)

const DefaultReadTimeout = 5 * time.Millisecond

type Sample struct {
	RSSI int32
	AtMs int64
	// Valid is false when no reading exists or the lock was contended.
	Valid bool
}

// Provider is what the transport queries at dequeue time.
type Provider interface {
	Latest() Sample
}

type Sampler struct {
	mu          *lock.Timed
	clock       clock.Clock
	readTimeout time.Duration
	sample      Sample
}

func NewSampler(c clock.Clock) *Sampler {
	return &Sampler{mu: lock.NewTimed(), clock: c, readTimeout: DefaultReadTimeout}
}

// Record is called from the radio receive path and never waits; a reading
// that arrives while a reader holds the lock is dropped.
func (s *Sampler) Record(rssi int32) bool {
	if !s.mu.TryLock() {
		return false
	}
	s.sample = Sample{RSSI: rssi, AtMs: s.clock.NowMs(), Valid: true}
	s.mu.Unlock()
	return true
}

func (s *Sampler) Latest() Sample {
	if !s.mu.LockWithin(s.readTimeout) {
		return Sample{}
	}
	defer s.mu.Unlock()
	return s.sample
}
