// Package device runs the per-iteration game loop of one wearable: drain
// the radio, beacon, step the engine, merge what the match authority says.
package device

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/clock"
	"github.com/DoyleJ11/zombie-proximity/internal/engine"
	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/packet"
	"github.com/DoyleJ11/zombie-proximity/internal/radio"
	"github.com/DoyleJ11/zombie-proximity/internal/records"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

const (
	DefaultBeaconInterval = 250 * time.Millisecond
	DefaultDrainBudget    = 20 * time.Millisecond
	DefaultYield          = 10 * time.Millisecond
)

type Radio interface {
	ReceiveLoop(budget time.Duration, rec radio.Recorder) int
	Send(p *packet.Packet) bool
}

type Updates interface {
	PollUpdate(r role.Role, s match.Status, health int32) (match.Response, bool)
}

type Options struct {
	BeaconInterval time.Duration
	DrainBudget    time.Duration
	Yield          time.Duration
	// PortalRSSI is used as given; a portal beacon must be stronger.
	PortalRSSI int32

	// OnPortal fires when a setup-portal beacon is heard during pre-game.
	OnPortal func()
	// OnResult receives every evaluated step.
	OnResult func(engine.Result)
	// OnOutcome fires on entering the holding state, and again if the
	// authority's verdict arrives after the local countdown ran out.
	OnOutcome func(match.Status)

	Log *zap.Logger
}

// Device owns all core state of one wearable. Only the goroutine calling
// Iterate or Run touches the store and the engine.
type Device struct {
	store   *records.Store
	radio   Radio
	engine  *engine.Engine
	updates Updates
	clock   clock.Clock
	opts    Options
	log     *zap.Logger

	lastBeaconMs int64
	beaconed     bool
	holding      bool
	outcome      match.Status
}

func New(store *records.Store, r Radio, eng *engine.Engine, u Updates, c clock.Clock, opts Options) *Device {
	if opts.BeaconInterval <= 0 {
		opts.BeaconInterval = DefaultBeaconInterval
	}
	if opts.DrainBudget < 0 {
		opts.DrainBudget = 0
	}
	if opts.Yield <= 0 {
		opts.Yield = DefaultYield
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{store: store, radio: r, engine: eng, updates: u, clock: c, opts: opts, log: log}
}

// Holding reports whether the device has stopped playing. Outcome is the
// authority's verdict, empty if the local countdown ran out first.
func (d *Device) Holding() bool         { return d.holding }
func (d *Device) Outcome() match.Status { return d.outcome }

// Iterate runs one pass of the loop. Only a failed role reload is returned
// as an error; everything else degrades to local play.
func (d *Device) Iterate() error {
	if d.holding {
		d.poll(d.clock.NowMs())
		return nil
	}

	d.radio.ReceiveLoop(d.opts.DrainBudget, d.store)
	now := d.clock.NowMs()

	if !d.beaconed || now-d.lastBeaconMs >= d.opts.BeaconInterval.Milliseconds() {
		p := d.store.SelfPacket()
		d.radio.Send(&p)
		d.beaconed = true
		d.lastBeaconMs = now
	}

	if d.engine.Phase() == engine.PhasePregame && d.store.ScanPortalBeacons(d.opts.PortalRSSI) {
		d.log.Info("portal beacon in range")
		if d.opts.OnPortal != nil {
			d.opts.OnPortal()
		}
	}

	res, err := d.engine.Step(now)
	switch {
	case err == nil:
		if d.opts.OnResult != nil {
			d.opts.OnResult(res)
		}
	case errors.Is(err, engine.ErrTooSoon), errors.Is(err, engine.ErrNotStarted), errors.Is(err, engine.ErrGameOver):
	case errors.Is(err, engine.ErrReload):
		return err
	default:
		d.log.Warn("step failed", zap.Error(err))
	}

	d.poll(now)
	if !d.holding && d.engine.Phase() == engine.PhaseGameOver {
		d.hold("")
	}
	return nil
}

func (d *Device) poll(now int64) {
	self := d.store.Self()
	status := StatusOf(d.engine.Phase())
	if d.holding {
		status = match.StatusGameOver
	}
	resp, ok := d.updates.PollUpdate(self.Role, status, self.Health)
	if !ok {
		return
	}

	switch {
	case resp.Status.Terminal():
		d.engine.End()
		if !d.holding || d.outcome == "" {
			d.hold(resp.Status)
		}
	case resp.Status == match.StatusRunning && !d.holding:
		d.engine.SetRemaining(now, resp.Remaining)
	}
}

func (d *Device) hold(outcome match.Status) {
	d.holding = true
	d.outcome = outcome
	d.log.Info("holding", zap.String("outcome", string(outcome)))
	if d.opts.OnOutcome != nil {
		d.opts.OnOutcome(outcome)
	}
}

// Run iterates until ctx is cancelled or a role reload fails. Between
// iterations it yields for a short sleep.
func (d *Device) Run(ctx context.Context) error {
	t := time.NewTicker(d.opts.Yield)
	defer t.Stop()

	for {
		if err := d.Iterate(); err != nil {
			d.log.Error("device loop stopped", zap.Error(err))
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// StatusOf maps an engine phase to the status reported to the authority.
func StatusOf(p engine.Phase) match.Status {
	switch p {
	case engine.PhasePregame:
		return match.StatusPregame
	case engine.PhasePlaying:
		return match.StatusPlaying
	case engine.PhaseGameOver:
		return match.StatusGameOver
	default:
		return match.StatusIdle
	}
}
