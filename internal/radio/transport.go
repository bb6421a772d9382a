// Package radio moves broadcast packets between the game loop and a link
// driver. Sending is fire-and-forget; receiving goes through a small bounded
// queue filled from the driver's callback and drained by the game loop.
package radio

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/clock"
	"github.com/DoyleJ11/zombie-proximity/internal/packet"
	"github.com/DoyleJ11/zombie-proximity/internal/signal"
)

const (
	DefaultQueueDepth = 10
	// NoSignal is recorded when no RSSI reading could be taken. It is below
	// any sensible far threshold, so the peer counts as out of range.
	NoSignal int32 = -127
)

var ErrNotOpen = errors.New("link not open")

// Receiver is the callback surface a link drives. Both methods are called
// from the link's own goroutine and must not block.
type Receiver interface {
	Deliver(frame []byte)
	Signal(rssi int32)
}

type Link interface {
	Open(rx Receiver) error
	Broadcast(frame []byte) error
	Close() error
}

// Recorder receives every valid packet.
type Recorder interface {
	RecordPeer(p packet.Packet, tsMs int64, rssi int32) bool
}

type Transport struct {
	link    Link
	sampler *signal.Sampler
	clock   clock.Clock
	log     *zap.Logger
	queue   chan []byte
	opened  bool
	seq     uint64
}

type Option func(*Transport)

func WithQueueDepth(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.queue = make(chan []byte, n)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

func New(link Link, c clock.Clock, opts ...Option) *Transport {
	t := &Transport{
		link:    link,
		sampler: signal.NewSampler(c),
		clock:   c,
		log:     zap.NewNop(),
		queue:   make(chan []byte, DefaultQueueDepth),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Open starts the link. Send opens lazily, so calling this is optional.
func (t *Transport) Open() error {
	if t.opened {
		return nil
	}
	if err := t.link.Open(t); err != nil {
		return err
	}
	t.opened = true
	return nil
}

// Send stamps the next sequence id on p and broadcasts it once.
func (t *Transport) Send(p *packet.Packet) bool {
	if err := t.Open(); err != nil {
		t.log.Warn("radio init failed", zap.Error(err))
		return false
	}

	t.seq++
	p.PacketID = t.seq
	frame, err := p.MarshalBinary()
	if err != nil {
		t.log.Warn("encode packet", zap.Error(err))
		return false
	}
	if err := t.link.Broadcast(frame); err != nil {
		t.log.Warn("broadcast failed", zap.Uint64("packet_id", p.PacketID), zap.Error(err))
		return false
	}
	return true
}

// Deliver enqueues a received frame, dropping it when the queue is full.
func (t *Transport) Deliver(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case t.queue <- cp:
	default:
		t.log.Debug("receive queue full, frame dropped")
	}
}

func (t *Transport) Signal(rssi int32) {
	t.sampler.Record(rssi)
}

// Sampler exposes the latest-reading provider.
func (t *Transport) Sampler() signal.Provider { return t.sampler }

// ReceiveLoop drains the queue into rec for at most budget. With a zero
// budget it only takes what is already queued. It returns the number of
// packets recorded.
func (t *Transport) ReceiveLoop(budget time.Duration, rec Recorder) int {
	var deadline <-chan time.Time
	if budget > 0 {
		timer := time.NewTimer(budget)
		defer timer.Stop()
		deadline = timer.C
	}

	n, taken := 0, 0
	for {
		select {
		case f := <-t.queue:
			taken++
			if t.handle(f, rec) {
				n++
			}
		case <-deadline:
			return n
		default:
			if deadline == nil {
				return n
			}
			select {
			case f := <-t.queue:
				taken++
				if t.handle(f, rec) {
					n++
				}
			case <-deadline:
				return n
			}
		}
		if deadline == nil && taken >= cap(t.queue) {
			return n
		}
	}
}

func (t *Transport) handle(frame []byte, rec Recorder) bool {
	p, err := packet.Decode(frame)
	if err != nil {
		t.log.Debug("discarding frame", zap.Error(err))
		return false
	}

	rssi := NoSignal
	if s := t.sampler.Latest(); s.Valid {
		rssi = s.RSSI
	}
	return rec.RecordPeer(p, t.clock.NowMs(), rssi)
}

func (t *Transport) Close() error {
	if !t.opened {
		return nil
	}
	t.opened = false
	return t.link.Close()
}
