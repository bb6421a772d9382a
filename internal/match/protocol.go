// Package match talks to the remote authority that owns global match timing
// and the final outcome. Role strings exist only at this boundary; callers
// see role.Role values.
package match

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/DoyleJ11/zombie-proximity/internal/role"
	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

type Status string

const (
	// Reported by devices.
	StatusIdle     Status = "idle"
	StatusPregame  Status = "pregame"
	StatusPlaying  Status = "playing"
	StatusGameOver Status = "gameover"

	// Reported by the authority.
	StatusWaiting    Status = "waiting"
	StatusRunning    Status = "running"
	StatusHumansWin  Status = "humans_win"
	StatusZombiesWin Status = "zombies_win"
	StatusDraw       Status = "draw"
)

// Terminal reports whether s is a final match outcome.
func (s Status) Terminal() bool {
	return s == StatusHumansWin || s == StatusZombiesWin || s == StatusDraw
}

type Request struct {
	DeviceID uint64
	Role     role.Role
	Status   Status
	Health   int32
	Battery  float64
	Comment  string
}

type Response struct {
	// Remaining is the time until the match ends.
	Remaining time.Duration
	// Timeout is the pre-game countdown until the match starts.
	Timeout time.Duration
	Role    role.Role
	Status  Status
	Success bool
}

func FormatDeviceID(id uint64) string { return fmt.Sprintf("%016x", id) }

func ParseDeviceID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("device id %q: %w", s, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("device id %q is reserved", s)
	}
	return id, nil
}

func (r Request) Wire() types.MatchRequest {
	return types.MatchRequest{
		ID:      FormatDeviceID(r.DeviceID),
		Role:    r.Role.String(),
		Status:  string(r.Status),
		Health:  r.Health,
		Battery: r.Battery,
		Comment: r.Comment,
	}
}

func RequestFromWire(w types.MatchRequest) (Request, error) {
	id, err := ParseDeviceID(w.ID)
	if err != nil {
		return Request{}, err
	}
	r, err := role.Parse(w.Role)
	if err != nil {
		return Request{}, err
	}
	return Request{
		DeviceID: id,
		Role:     r,
		Status:   Status(w.Status),
		Health:   w.Health,
		Battery:  w.Battery,
		Comment:  w.Comment,
	}, nil
}

func (r Response) Wire() types.MatchResponse {
	return types.MatchResponse{
		GameDuration: wholeSeconds(r.Remaining),
		GameTimeout:  wholeSeconds(r.Timeout),
		Role:         r.Role.String(),
		Status:       string(r.Status),
		Success:      r.Success,
	}
}

func ResponseFromWire(w types.MatchResponse) (Response, error) {
	r, err := role.Parse(w.Role)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Remaining: time.Duration(w.GameDuration) * time.Second,
		Timeout:   time.Duration(w.GameTimeout) * time.Second,
		Role:      r,
		Status:    Status(w.Status),
		Success:   w.Success,
	}, nil
}

func wholeSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
