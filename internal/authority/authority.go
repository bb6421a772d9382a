// Package authority is the reference match authority: it hands out roles,
// owns the match clock and decides the outcome from what devices report.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

var ErrStopped = errors.New("authority stopped")

const (
	DefaultDuration    = 15 * time.Minute
	DefaultPregame     = 30 * time.Second
	DefaultZombieEvery = 4
	DefaultStaleAfter  = 30 * time.Second
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
)

type Options struct {
	Duration time.Duration
	Pregame  time.Duration
	// ZombieEvery makes the first and then every n-th newly assigned
	// device a zombie.
	ZombieEvery int
	// StaleAfter excludes devices that stopped reporting from the outcome.
	StaleAfter time.Duration
	Now        func() time.Time
	Log        *zap.Logger
}

type Msg interface{ isAuthorityMsg() }

type Report struct {
	Req   match.Request
	Reply chan match.Response
}

type StartMatch struct {
	Reply chan string
}

type GetView struct {
	Reply chan types.MatchView
}

type Shutdown struct{}

func (Report) isAuthorityMsg()     {}
func (StartMatch) isAuthorityMsg() {}
func (GetView) isAuthorityMsg()    {}
func (Shutdown) isAuthorityMsg()   {}

type Authority struct {
	inbox  chan Msg
	store  Store
	opts   Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	phase    Phase
	matchID  string
	startAt  time.Time
	endAt    time.Time
	outcome  match.Status
	assigned map[uint64]role.Role
	dealt    int
}

func New(parent context.Context, store Store, opts Options) *Authority {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Pregame < 0 {
		opts.Pregame = 0
	}
	if opts.ZombieEvery <= 0 {
		opts.ZombieEvery = DefaultZombieEvery
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	a := &Authority{
		inbox:    make(chan Msg, 64),
		store:    store,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseWaiting,
		assigned: make(map[uint64]role.Role),
	}
	go a.loop()
	return a
}

func (a *Authority) Inbox() chan<- Msg { return a.inbox }

// Report records a device's state and returns the authority's answer.
func (a *Authority) Report(ctx context.Context, req match.Request) (match.Response, error) {
	reply := make(chan match.Response, 1)
	if err := a.send(ctx, Report{Req: req, Reply: reply}); err != nil {
		return match.Response{}, err
	}
	return await(ctx, a.ctx, reply)
}

// Start begins a new match and returns its id.
func (a *Authority) Start(ctx context.Context) (string, error) {
	reply := make(chan string, 1)
	if err := a.send(ctx, StartMatch{Reply: reply}); err != nil {
		return "", err
	}
	return await(ctx, a.ctx, reply)
}

func (a *Authority) View(ctx context.Context) (types.MatchView, error) {
	reply := make(chan types.MatchView, 1)
	if err := a.send(ctx, GetView{Reply: reply}); err != nil {
		return types.MatchView{}, err
	}
	return await(ctx, a.ctx, reply)
}

func (a *Authority) send(ctx context.Context, m Msg) error {
	if a.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case a.inbox <- m:
		return nil
	case <-a.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx, actor context.Context, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-actor.Done():
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (a *Authority) loop() {
	for {
		select {
		case <-a.ctx.Done():
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Report:
				msg.Reply <- a.report(msg.Req)

			case StartMatch:
				msg.Reply <- a.start()

			case GetView:
				msg.Reply <- a.view()

			case Shutdown:
				a.cancel()
				return
			}
		}
	}
}

func (a *Authority) start() string {
	now := a.opts.Now()
	a.matchID = uuid.NewString()
	a.phase = PhaseRunning
	a.startAt = now.Add(a.opts.Pregame)
	a.endAt = a.startAt.Add(a.opts.Duration)
	a.outcome = ""
	a.dealt = 0
	clear(a.assigned)
	if err := a.store.Clear(a.ctx); err != nil {
		a.log.Warn("clear roster", zap.Error(err))
	}

	a.log.Info("match started",
		zap.String("match_id", a.matchID),
		zap.Time("starts_at", a.startAt),
		zap.Time("ends_at", a.endAt))
	return a.matchID
}

func (a *Authority) report(req match.Request) match.Response {
	now := a.opts.Now()
	r := a.roleFor(req)

	err := a.store.Upsert(a.ctx, Device{
		ID:       req.DeviceID,
		Role:     r,
		Status:   req.Status,
		Health:   req.Health,
		Battery:  req.Battery,
		Comment:  req.Comment,
		LastSeen: now,
	})
	if err != nil {
		a.log.Warn("roster upsert", zap.String("id", match.FormatDeviceID(req.DeviceID)), zap.Error(err))
	}

	if a.phase == PhaseRunning && !now.Before(a.startAt) {
		a.resolve(now)
	}
	return a.answer(now, r)
}

// roleFor keeps a role a device already claims and assigns one to neutral
// devices once a match is running.
func (a *Authority) roleFor(req match.Request) role.Role {
	if a.phase == PhaseWaiting {
		return role.None
	}
	if req.Role != role.None {
		a.assigned[req.DeviceID] = req.Role
		return req.Role
	}
	if r, ok := a.assigned[req.DeviceID]; ok {
		return r
	}
	if a.phase != PhaseRunning {
		return role.None
	}

	r := role.Human
	if a.dealt%a.opts.ZombieEvery == 0 {
		r = role.Zombie
	}
	a.dealt++
	a.assigned[req.DeviceID] = r
	a.log.Info("role assigned", zap.String("id", match.FormatDeviceID(req.DeviceID)), zap.Stringer("role", r))
	return r
}

func (a *Authority) resolve(now time.Time) {
	devices, err := a.store.List(a.ctx)
	if err != nil {
		a.log.Warn("roster list", zap.Error(err))
		return
	}

	humans, zombies := 0, 0
	for _, d := range devices {
		if now.Sub(d.LastSeen) > a.opts.StaleAfter {
			continue
		}
		switch d.Role {
		case role.Human:
			humans++
		case role.Zombie:
			zombies++
		}
	}

	switch {
	case humans == 0 && zombies > 0:
		a.finish(match.StatusZombiesWin)
	case zombies == 0 && humans > 0:
		a.finish(match.StatusHumansWin)
	case !now.Before(a.endAt):
		a.finish(match.StatusDraw)
	}
}

func (a *Authority) finish(outcome match.Status) {
	a.phase = PhaseFinished
	a.outcome = outcome
	a.log.Info("match finished", zap.String("match_id", a.matchID), zap.String("outcome", string(outcome)))
}

func (a *Authority) status() match.Status {
	switch a.phase {
	case PhaseRunning:
		return match.StatusRunning
	case PhaseFinished:
		return a.outcome
	default:
		return match.StatusWaiting
	}
}

func (a *Authority) answer(now time.Time, r role.Role) match.Response {
	resp := match.Response{Role: r, Status: a.status(), Success: true}
	if a.phase == PhaseWaiting {
		return resp
	}
	resp.Timeout = positive(a.startAt.Sub(now))
	resp.Remaining = positive(a.endAt.Sub(now))
	return resp
}

func (a *Authority) view() types.MatchView {
	now := a.opts.Now()
	v := types.MatchView{MatchID: a.matchID, Status: string(a.status()), Devices: []types.DeviceView{}}
	if a.phase != PhaseWaiting {
		v.StartsInS = int64(positive(a.startAt.Sub(now)).Seconds())
		v.RemainingS = int64(positive(a.endAt.Sub(now)).Seconds())
	}

	devices, err := a.store.List(a.ctx)
	if err != nil {
		a.log.Warn("roster list", zap.Error(err))
		return v
	}
	for _, d := range devices {
		v.Devices = append(v.Devices, types.DeviceView{
			ID:       match.FormatDeviceID(d.ID),
			Role:     d.Role.String(),
			Status:   string(d.Status),
			Health:   d.Health,
			Battery:  d.Battery,
			Comment:  d.Comment,
			LastSeen: d.LastSeen.UnixMilli(),
		})
	}
	return v
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
