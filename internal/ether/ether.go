// Package ether simulates the shared radio medium for devices running off
// hardware. Every frame a station transmits reaches every other station
// with an RSSI derived from the distance between them.
package ether

import (
	"context"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("ether stopped")

const (
	// RSSI at one metre and the path-loss exponent of the log-distance model.
	RefRSSI      = -40.0
	PathExponent = 2.2
	// Frames weaker than Floor are not delivered.
	Floor int32 = -100
)

// Frame is what a station receives.
type Frame struct {
	From uint64
	Data []byte
	RSSI int32
}

type Station struct {
	ID uint64
	X  float64
	Y  float64
}

type Msg interface{ isEtherMsg() }

type Join struct {
	Station Station
	Outbox  chan Frame
}

type Leave struct {
	ID     uint64
	Outbox chan Frame
}

type Transmit struct {
	From uint64
	Data []byte
}

type Move struct {
	ID   uint64
	X, Y float64
}

type List struct {
	Reply chan []Station
}

type Shutdown struct{}

func (Join) isEtherMsg()     {}
func (Leave) isEtherMsg()    {}
func (Transmit) isEtherMsg() {}
func (Move) isEtherMsg()     {}
func (List) isEtherMsg()     {}
func (Shutdown) isEtherMsg() {}

type member struct {
	station Station
	outbox  chan Frame
}

type Ether struct {
	inbox    chan Msg
	stations map[uint64]*member
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, log *zap.Logger) *Ether {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	e := &Ether{
		inbox:    make(chan Msg, 256),
		stations: make(map[uint64]*member),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go e.loop()
	return e
}

func (e *Ether) Inbox() chan<- Msg { return e.inbox }

// Send queues m for the ether, giving up if it has stopped.
func (e *Ether) Send(ctx context.Context, m Msg) error {
	if e.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case e.inbox <- m:
		return nil
	case <-e.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Ether) loop() {
	for {
		select {
		case <-e.ctx.Done():
			e.shutdown()
			return

		case m := <-e.inbox:
			switch msg := m.(type) {
			case Join:
				if old := e.stations[msg.Station.ID]; old != nil {
					close(old.outbox)
				}
				e.stations[msg.Station.ID] = &member{station: msg.Station, outbox: msg.Outbox}
				e.log.Debug("station joined", zap.Uint64("id", msg.Station.ID))

			case Leave:
				// A reconnect may already have replaced the outbox.
				if st := e.stations[msg.ID]; st != nil && st.outbox == msg.Outbox {
					close(st.outbox)
					delete(e.stations, msg.ID)
				}

			case Transmit:
				e.relay(msg)

			case Move:
				if st := e.stations[msg.ID]; st != nil {
					st.station.X, st.station.Y = msg.X, msg.Y
				}

			case List:
				out := make([]Station, 0, len(e.stations))
				for _, st := range e.stations {
					out = append(out, st.station)
				}
				sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
				msg.Reply <- out

			case Shutdown:
				e.shutdown()
				return
			}
		}
	}
}

func (e *Ether) relay(tx Transmit) {
	src := e.stations[tx.From]
	if src == nil {
		return
	}
	for id, dst := range e.stations {
		if id == tx.From {
			continue
		}
		rssi := RSSI(Distance(src.station, dst.station))
		if rssi < Floor {
			continue
		}
		select {
		case dst.outbox <- Frame{From: tx.From, Data: tx.Data, RSSI: rssi}:
		default:
			// Lossy medium: a station that is not keeping up misses the frame.
			e.log.Debug("frame dropped", zap.Uint64("to", id))
		}
	}
}

func (e *Ether) shutdown() {
	e.cancel()
	for id, st := range e.stations {
		close(st.outbox)
		delete(e.stations, id)
	}
}

func Distance(a, b Station) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// RSSI is the log-distance path-loss model. Distances under one metre are
// treated as one metre.
func RSSI(d float64) int32 {
	if d < 1 {
		d = 1
	}
	return int32(math.Round(RefRSSI - 10*PathExponent*math.Log10(d)))
}
