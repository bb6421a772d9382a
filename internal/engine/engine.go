package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/records"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

var ErrTooSoon = errors.New("step interval not elapsed")
var ErrGameOver = errors.New("game over")
var ErrNotStarted = errors.New("game not started")
var ErrReload = errors.New("could not load role configuration")

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePregame  Phase = "pregame"
	PhasePlaying  Phase = "playing"
	PhaseGameOver Phase = "gameover"
)

const (
	DefaultLoopInterval = time.Second
	DefaultRespawn      = 10 * time.Second

	// BaseSecondsLeft is reported by base devices, which never die and do
	// not track the countdown.
	BaseSecondsLeft int64 = 99999
)

// ConfigLoader supplies a role's starting configuration document.
type ConfigLoader interface {
	Load(r role.Role) ([]byte, error)
}

type Rules struct {
	// LoopInterval gates Step and is also the in-range window for peers.
	LoopInterval time.Duration
	// Respawn is the local pre-game countdown after a role reversal.
	Respawn time.Duration
}

func DefaultRules() Rules {
	return Rules{LoopInterval: DefaultLoopInterval, Respawn: DefaultRespawn}
}

// Result is the per-step aggregate handed to the orchestrator and any
// display collaborator.
type Result struct {
	Phase       Phase
	Role        role.Role
	Zombies     int
	Humans      int
	Bases       int
	HealPoints  int32
	HitPoints   int32
	Health      int32
	InBase      bool
	SecondsLeft int64
	PregameLeft int64
	// Flipped is set on the step that performed a role reversal.
	Flipped bool
	// Strongest is the loudest in-range peer, filled for RssiMonitor only.
	Strongest records.Peer
}

type Engine struct {
	store  *records.Store
	loader ConfigLoader
	rules  Rules
	log    *zap.Logger

	phase        Phase
	lastStepMs   int64
	stepped      bool
	pregameEndMs int64
	deadlineMs   int64
	base         baseState
}

func New(store *records.Store, loader ConfigLoader, rules Rules, log *zap.Logger) *Engine {
	if rules.LoopInterval <= 0 {
		rules.LoopInterval = DefaultLoopInterval
	}
	if rules.Respawn < 0 {
		rules.Respawn = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, loader: loader, rules: rules, log: log, phase: PhaseIdle}
}

// Start loads r's configuration into the self record and begins the local
// game: a pre-game countdown of pregame, then play until duration (counted
// from now) runs out.
func (e *Engine) Start(nowMs int64, r role.Role, pregame, duration time.Duration) error {
	if err := e.load(r); err != nil {
		return err
	}
	e.base = baseState{}
	e.stepped = false
	e.phase = PhasePregame
	e.pregameEndMs = nowMs + pregame.Milliseconds()
	e.deadlineMs = nowMs + duration.Milliseconds()
	e.log.Info("local game started",
		zap.Stringer("role", r),
		zap.Duration("pregame", pregame),
		zap.Duration("duration", duration))
	return nil
}

func (e *Engine) load(r role.Role) error {
	data, err := e.loader.Load(r)
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrReload, r, err)
	}
	c, err := records.ParseConfig(data)
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrReload, r, err)
	}
	if *c.DeviceRole != r {
		return fmt.Errorf("%w: file for %s declares %s", ErrReload, r, *c.DeviceRole)
	}
	if err := e.store.SetSelfFromConfig(data); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrReload, r, err)
	}
	return nil
}

// SetRemaining replaces the local countdown with the authority's.
func (e *Engine) SetRemaining(nowMs int64, d time.Duration) {
	if e.phase == PhaseGameOver || e.phase == PhaseIdle {
		return
	}
	e.deadlineMs = nowMs + d.Milliseconds()
}

// End enters the terminal state regardless of the local countdown.
func (e *Engine) End() {
	if e.phase != PhaseGameOver {
		e.log.Info("game over")
	}
	e.phase = PhaseGameOver
}

// Reset returns the engine to idle; the only way out of game over.
func (e *Engine) Reset() {
	e.phase = PhaseIdle
	e.base = baseState{}
	e.stepped = false
}

func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) InBase() bool { return e.base.in }

func (e *Engine) secondsLeft(nowMs int64) int64 {
	if e.store.Self().Role == role.Base {
		return BaseSecondsLeft
	}
	return ceilSeconds(e.deadlineMs - nowMs)
}

func ceilSeconds(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}
