package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/records"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

// Step evaluates one game tick. It returns ErrTooSoon when called again
// within the loop interval and ErrGameOver once the game has ended.
//
// A self health below zero is acted on at the start of the following step:
// that step performs the role reversal and nothing else.
func (e *Engine) Step(nowMs int64) (Result, error) {
	switch e.phase {
	case PhaseIdle:
		return Result{Phase: PhaseIdle}, ErrNotStarted
	case PhaseGameOver:
		return e.snapshot(nowMs), ErrGameOver
	}
	if e.stepped && nowMs-e.lastStepMs < e.rules.LoopInterval.Milliseconds() {
		return Result{}, ErrTooSoon
	}
	e.stepped = true
	e.lastStepMs = nowMs

	self := e.store.Self()
	if self.Role == role.RssiMonitor {
		return e.monitor(nowMs), nil
	}
	if self.Role.Combat() && self.Health < 0 {
		return e.reverse(nowMs)
	}

	if e.phase == PhasePregame {
		if nowMs < e.pregameEndMs {
			res := e.snapshot(nowMs)
			if res.SecondsLeft <= 0 {
				e.End()
				res.Phase = e.phase
			}
			return res, nil
		}
		e.phase = PhasePlaying
		e.log.Info("pre-game over, playing", zap.Stringer("role", self.Role))
	}

	res := e.tally(nowMs)
	if self.Role.Combat() {
		e.base.update(nowMs, res.HealPoints)
		if e.base.in {
			res.HitPoints = 0
		}
		self.Health += res.HealPoints + res.HitPoints
		if self.Health > self.MaxHealth {
			self.Health = self.MaxHealth
		}
	}

	res.Phase = e.phase
	res.Role = self.Role
	res.Health = self.Health
	res.InBase = e.base.in
	res.SecondsLeft = e.secondsLeft(nowMs)
	if res.SecondsLeft <= 0 {
		e.End()
		res.Phase = e.phase
	}

	e.log.Debug("step",
		zap.Int("zombies", res.Zombies),
		zap.Int("humans", res.Humans),
		zap.Int("bases", res.Bases),
		zap.Int32("heal", res.HealPoints),
		zap.Int32("hit", res.HitPoints),
		zap.Int32("health", res.Health),
		zap.Bool("in_base", res.InBase))
	return res, nil
}

func (e *Engine) inRange(p records.Peer, nowMs int64) bool {
	return !p.Empty() && nowMs-p.LastReceivedMs < e.rules.LoopInterval.Milliseconds()
}

// tally counts in-range peers and sums what they project onto us.
func (e *Engine) tally(nowMs int64) Result {
	self := e.store.Self()
	opponent := self.Role.Opponent()

	var res Result
	for _, p := range e.store.Peers() {
		if !e.inRange(p, nowMs) {
			continue
		}
		switch p.Role {
		case role.Zombie:
			res.Zombies++
		case role.Human:
			res.Humans++
		case role.Base:
			res.Bases++
		}

		if opponent != role.None && p.Role == opponent {
			points, _ := records.RssiToPoints(p, self.Thresholds)
			res.HitPoints += points
		}
		if p.Role == role.Base {
			points, _ := records.RssiToPoints(p, self.Thresholds)
			res.HealPoints += points
		}
	}
	return res
}

func (e *Engine) monitor(nowMs int64) Result {
	res := Result{Phase: e.phase, Role: role.RssiMonitor, Health: e.store.Self().Health}
	found := false
	for _, p := range e.store.Peers() {
		if !e.inRange(p, nowMs) {
			continue
		}
		if !found || p.RSSI > res.Strongest.RSSI {
			res.Strongest = p
			found = true
		}
	}
	return res
}

// reverse flips Human and Zombie, reloads the new role's configuration and
// restarts the local pre-game. The match deadline is kept.
func (e *Engine) reverse(nowMs int64) (Result, error) {
	from := e.store.Self().Role
	to := from.Opponent()
	if err := e.load(to); err != nil {
		return Result{}, fmt.Errorf("role reversal %s -> %s: %w", from, to, err)
	}

	e.base = baseState{}
	e.phase = PhasePregame
	e.pregameEndMs = nowMs + e.rules.Respawn.Milliseconds()
	e.log.Info("role reversed", zap.Stringer("from", from), zap.Stringer("to", to))

	res := e.snapshot(nowMs)
	res.Flipped = true
	return res, nil
}

func (e *Engine) snapshot(nowMs int64) Result {
	self := e.store.Self()
	return Result{
		Phase:       e.phase,
		Role:        self.Role,
		Health:      self.Health,
		InBase:      e.base.in,
		SecondsLeft: e.secondsLeft(nowMs),
		PregameLeft: e.pregameLeft(nowMs),
	}
}

func (e *Engine) pregameLeft(nowMs int64) int64 {
	if e.phase != PhasePregame {
		return 0
	}
	return ceilSeconds(e.pregameEndMs - nowMs)
}
