package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/lock"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

var ErrTimeout = errors.New("timed out waiting for role assignment")

const (
	DefaultPeriod      = 2 * time.Second
	DefaultRetryDelay  = time.Second
	DefaultLockTimeout = 5 * time.Millisecond
)

type Options struct {
	Period      time.Duration
	RetryDelay  time.Duration
	LockTimeout time.Duration
	Battery     func() float64
	Comment     string
	Log         *zap.Logger
}

// Assignment is what WaitForRole hands back before play.
type Assignment struct {
	Role     role.Role
	Pregame  time.Duration
	Duration time.Duration
}

type outbound struct {
	role   role.Role
	status Status
	health int32
}

// Coordinator keeps the device and the authority in step. The orchestrator
// and SyncLoop share the outbound state and the cached response under a
// lock that either side gives up on quickly.
type Coordinator struct {
	auth     Authority
	deviceID uint64
	opts     Options
	log      *zap.Logger

	mu     *lock.Timed
	out    outbound
	latest Response
	fresh  bool
}

func NewCoordinator(auth Authority, deviceID uint64, opts Options) *Coordinator {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Battery == nil {
		opts.Battery = func() float64 { return 100 }
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		auth:     auth,
		deviceID: deviceID,
		opts:     opts,
		log:      log,
		mu:       lock.NewTimed(),
		out:      outbound{role: role.None, status: StatusIdle},
	}
}

func (c *Coordinator) request(o outbound) Request {
	return Request{
		DeviceID: c.deviceID,
		Role:     o.role,
		Status:   o.status,
		Health:   o.health,
		Battery:  c.opts.Battery(),
		Comment:  c.opts.Comment,
	}
}

// SetState replaces the outbound parameters, waiting for the lock as long
// as it takes. Only for use outside the game loop.
func (c *Coordinator) SetState(r role.Role, s Status, health int32) {
	c.mu.Lock()
	c.out = outbound{role: r, status: s, health: health}
	c.mu.Unlock()
}

// WaitForRole blocks until the authority assigns a non-neutral role or
// timeout passes. Transport failures are retried after a fixed delay.
func (c *Coordinator) WaitForRole(ctx context.Context, timeout time.Duration) (Assignment, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		var o outbound
		if c.mu.LockWithin(c.opts.LockTimeout) {
			o = c.out
			c.mu.Unlock()
		}

		resp, err := c.auth.Exchange(waitCtx, c.request(o))
		switch {
		case err != nil:
			c.log.Warn("authority unreachable, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", c.opts.RetryDelay),
				zap.Error(err))
		case resp.Role != role.None:
			c.log.Info("role assigned",
				zap.Stringer("role", resp.Role),
				zap.Duration("pregame", resp.Timeout),
				zap.Duration("duration", resp.Remaining))
			return Assignment{Role: resp.Role, Pregame: resp.Timeout, Duration: resp.Remaining}, nil
		default:
			c.log.Debug("no role yet", zap.String("status", string(resp.Status)))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return Assignment{}, ctx.Err()
			}
			return Assignment{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-time.After(c.opts.RetryDelay):
		}
	}
}

// SyncLoop posts the outbound state every period until ctx is cancelled.
// Cancellation aborts any exchange in flight; its result is discarded.
func (c *Coordinator) SyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.syncOnce(ctx)
		}
	}
}

func (c *Coordinator) syncOnce(ctx context.Context) {
	if !c.mu.LockWithin(c.opts.LockTimeout) {
		return
	}
	o := c.out
	c.mu.Unlock()

	exCtx, cancel := context.WithTimeout(ctx, c.opts.Period)
	defer cancel()
	resp, err := c.auth.Exchange(exCtx, c.request(o))
	if err != nil {
		if ctx.Err() == nil {
			c.log.Debug("sync failed", zap.Error(err))
		}
		return
	}

	if !c.mu.LockWithin(c.opts.LockTimeout) {
		return
	}
	c.latest = resp
	c.fresh = true
	c.mu.Unlock()
}

// PollUpdate swaps in new outbound parameters and takes the cached response
// if one arrived since the last poll. It never waits longer than the lock
// timeout; on contention it reports no update.
func (c *Coordinator) PollUpdate(r role.Role, s Status, health int32) (Response, bool) {
	if !c.mu.LockWithin(c.opts.LockTimeout) {
		return Response{}, false
	}
	defer c.mu.Unlock()

	c.out = outbound{role: r, status: s, health: health}
	if !c.fresh {
		return Response{}, false
	}
	c.fresh = false
	return c.latest, true
}
