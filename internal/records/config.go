package records

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

var ErrInvalidConfig = errors.New("invalid game configuration")

// Config is the startup document written by the device portal or shipped
// as a fixed-game file. Thresholds are only present in full configs.
type Config struct {
	DeviceRole      *role.Role `json:"deviceRole"`
	HitPointsNear   *int32     `json:"hitPointsNear"`
	HitPointsMiddle *int32     `json:"hitPointsMiddle"`
	HitPointsFar    *int32     `json:"hitPointsFar"`
	Health          *int32     `json:"health"`
	MaxHealth       *int32     `json:"maxHealth"`
	RssiFar         *int32     `json:"rssiFar,omitempty"`
	RssiMiddle      *int32     `json:"rssiMiddle,omitempty"`
	RssiClose       *int32     `json:"rssiClose,omitempty"`
}

func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

func (c Config) validate() error {
	var err error
	required := []struct {
		name string
		set  bool
	}{
		{"deviceRole", c.DeviceRole != nil},
		{"hitPointsNear", c.HitPointsNear != nil},
		{"hitPointsMiddle", c.HitPointsMiddle != nil},
		{"hitPointsFar", c.HitPointsFar != nil},
		{"health", c.Health != nil},
		{"maxHealth", c.MaxHealth != nil},
	}
	for _, f := range required {
		if !f.set {
			err = multierr.Append(err, fmt.Errorf("missing %s", f.name))
		}
	}
	if err != nil {
		return err
	}

	if *c.MaxHealth <= 0 {
		err = multierr.Append(err, fmt.Errorf("maxHealth %d must be positive", *c.MaxHealth))
	}
	if *c.Health > *c.MaxHealth {
		err = multierr.Append(err, fmt.Errorf("health %d above maxHealth %d", *c.Health, *c.MaxHealth))
	}

	n := 0
	for _, p := range []*int32{c.RssiFar, c.RssiMiddle, c.RssiClose} {
		if p != nil {
			n++
		}
	}
	switch {
	case n == 3:
		if !(*c.RssiFar < *c.RssiMiddle && *c.RssiMiddle < *c.RssiClose) {
			err = multierr.Append(err, fmt.Errorf("thresholds must satisfy far < middle < close, got %d/%d/%d",
				*c.RssiFar, *c.RssiMiddle, *c.RssiClose))
		}
	case n != 0:
		err = multierr.Append(err, errors.New("rssiFar, rssiMiddle and rssiClose must be given together"))
	}
	return err
}

func (c Config) full() bool { return c.RssiFar != nil }

// SetSelfFromConfig replaces the self record's game state. Nothing is
// applied unless the whole document is valid. Thresholds are kept when the
// config does not carry them.
func (s *Store) SetSelfFromConfig(data []byte) error {
	c, err := ParseConfig(data)
	if err != nil {
		return err
	}

	next := Self{
		ID:   s.self.ID,
		Role: *c.DeviceRole,
		HitPoints: HitPoints{
			Near:   *c.HitPointsNear,
			Middle: *c.HitPointsMiddle,
			Far:    *c.HitPointsFar,
		},
		Health:      *c.Health,
		BeginHealth: *c.Health,
		MaxHealth:   *c.MaxHealth,
		Thresholds:  s.self.Thresholds,
	}
	if c.full() {
		next.Thresholds = Thresholds{Far: *c.RssiFar, Middle: *c.RssiMiddle, Close: *c.RssiClose}
	}
	s.self = next
	return nil
}
