package match

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/zombie-proximity/internal/role"
	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

type scriptedAuthority struct {
	mu    sync.Mutex
	calls []Request
	reply func(n int, req Request) (Response, error)
}

func (a *scriptedAuthority) Exchange(ctx context.Context, req Request) (Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	n := len(a.calls)
	a.mu.Unlock()
	return a.reply(n, req)
}

func (a *scriptedAuthority) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func fastOpts() Options {
	return Options{Period: 10 * time.Millisecond, RetryDelay: 5 * time.Millisecond}
}

func TestWaitForRoleRetriesUntilAssigned(t *testing.T) {
	auth := &scriptedAuthority{reply: func(n int, _ Request) (Response, error) {
		switch {
		case n <= 2:
			return Response{}, errors.New("connection refused")
		case n == 3:
			return Response{Role: role.None, Status: StatusWaiting, Success: true}, nil
		default:
			return Response{Role: role.Zombie, Timeout: 30 * time.Second, Remaining: 15 * time.Minute, Success: true}, nil
		}
	}}
	c := NewCoordinator(auth, 0xAB, fastOpts())

	got, err := c.WaitForRole(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, Assignment{Role: role.Zombie, Pregame: 30 * time.Second, Duration: 15 * time.Minute}, got)
	assert.Equal(t, 4, auth.count())
	assert.Equal(t, uint64(0xAB), auth.calls[0].DeviceID)
}

func TestWaitForRoleTimesOut(t *testing.T) {
	auth := &scriptedAuthority{reply: func(int, Request) (Response, error) {
		return Response{}, errors.New("unreachable")
	}}
	c := NewCoordinator(auth, 1, fastOpts())

	_, err := c.WaitForRole(context.Background(), 40*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, auth.count(), 2)
}

func TestWaitForRoleHonoursParentCancel(t *testing.T) {
	auth := &scriptedAuthority{reply: func(int, Request) (Response, error) {
		return Response{Role: role.None, Success: true}, nil
	}}
	c := NewCoordinator(auth, 1, fastOpts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.WaitForRole(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSyncLoopMarksFreshAndPollTakesOnce(t *testing.T) {
	var seen atomic.Int32
	auth := &scriptedAuthority{reply: func(_ int, req Request) (Response, error) {
		seen.Store(req.Health)
		return Response{Role: req.Role, Status: StatusRunning, Remaining: time.Minute, Success: true}, nil
	}}
	c := NewCoordinator(auth, 1, fastOpts())

	_, ok := c.PollUpdate(role.Human, StatusPlaying, 750)
	assert.False(t, ok, "nothing synced yet")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.SyncLoop(ctx)

	var resp Response
	require.Eventually(t, func() bool {
		resp, ok = c.PollUpdate(role.Human, StatusPlaying, 750)
		return ok
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, StatusRunning, resp.Status)
	assert.Equal(t, time.Minute, resp.Remaining)
	assert.Equal(t, int32(750), seen.Load(), "sync posts the polled state")

	cancel()
	time.Sleep(20 * time.Millisecond)
	c.PollUpdate(role.Human, StatusPlaying, 750)
	_, ok = c.PollUpdate(role.Human, StatusPlaying, 750)
	assert.False(t, ok, "fresh flag is cleared by the take")
}

func TestSyncFailureLeavesNoUpdate(t *testing.T) {
	auth := &scriptedAuthority{reply: func(int, Request) (Response, error) {
		return Response{}, errors.New("down")
	}}
	c := NewCoordinator(auth, 1, fastOpts())

	c.syncOnce(context.Background())
	_, ok := c.PollUpdate(role.Human, StatusPlaying, 1)
	assert.False(t, ok)
}

func TestPollUpdateGivesUpOnContention(t *testing.T) {
	auth := &scriptedAuthority{reply: func(int, Request) (Response, error) {
		return Response{Status: StatusRunning, Success: true}, nil
	}}
	c := NewCoordinator(auth, 1, fastOpts())
	c.syncOnce(context.Background())

	c.mu.Lock()
	start := time.Now()
	_, ok := c.PollUpdate(role.Human, StatusPlaying, 1)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	c.mu.Unlock()

	_, ok = c.PollUpdate(role.Human, StatusPlaying, 1)
	assert.True(t, ok, "update survives a contended poll")
}

func TestHTTPAuthorityExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req types.MatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "00000000000000ab", req.ID)
		assert.Equal(t, "neutral", req.Role)
		assert.Equal(t, "idle", req.Status)

		_ = json.NewEncoder(w).Encode(types.MatchResponse{
			GameDuration: 900, GameTimeout: 30, Role: "human", Status: "running", Success: true,
		})
	}))
	defer srv.Close()

	got, err := NewHTTPAuthority(srv.URL).Exchange(context.Background(), Request{DeviceID: 0xAB, Role: role.None, Status: StatusIdle})
	require.NoError(t, err)
	assert.Equal(t, Response{Remaining: 900 * time.Second, Timeout: 30 * time.Second, Role: role.Human, Status: StatusRunning, Success: true}, got)
}

func TestHTTPAuthorityRejections(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"success false", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"role":"neutral","success":false}`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewHTTPAuthority(srv.URL).Exchange(context.Background(), Request{DeviceID: 1})
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestUnknownWireRoleIsRejectedAtBoundary(t *testing.T) {
	_, err := ResponseFromWire(types.MatchResponse{Role: "werewolf"})
	assert.ErrorIs(t, err, role.ErrUnknownRole)

	_, err = RequestFromWire(types.MatchRequest{ID: "0", Role: "human"})
	assert.Error(t, err, "id 0 is the empty-slot sentinel")
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusHumansWin, StatusZombiesWin, StatusDraw} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusWaiting, StatusRunning, StatusPlaying} {
		assert.False(t, s.Terminal(), s)
	}
}
