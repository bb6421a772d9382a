package role

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is the gameplay function a device plays. The numeric values are
// carried in the broadcast packet and must stay stable.
type Role uint8

const (
	None Role = iota
	Zombie
	Human
	Base
	Server
	Pinger
	ApPortalBeacon
	RssiMonitor

	numRoles
)

// Wire names used at the match authority boundary. None is "neutral".
var names = [numRoles]string{
	None:           "neutral",
	Zombie:         "zombie",
	Human:          "human",
	Base:           "base",
	Server:         "server",
	Pinger:         "pinger",
	ApPortalBeacon: "apportalbeacon",
	RssiMonitor:    "rssimonitor",
}

func (r Role) Valid() bool { return r < numRoles }

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return names[r]
}

// Combat reports whether the role takes part in damage exchange.
func (r Role) Combat() bool { return r == Zombie || r == Human }

// Opponent returns the opposite combat role, or None for every role that
// never flips.
func (r Role) Opponent() Role {
	switch r {
	case Zombie:
		return Human
	case Human:
		return Zombie
	default:
		return None
	}
}

func Parse(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return Role(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(names[r]), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalJSON accepts both the wire name and the numeric value, since
// device-authored configuration files store the number.
func (r *Role) UnmarshalJSON(b []byte) error {
	var n uint8
	if err := json.Unmarshal(b, &n); err == nil {
		v := Role(n)
		if !v.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownRole, n)
		}
		*r = v
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("role must be a string or number: %w", err)
	}
	return r.UnmarshalText([]byte(s))
}
