// Package config reads both binaries' settings from the environment,
// after loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/zombie-proximity/internal/match"
)

var ErrInvalid = errors.New("invalid configuration")

type Link string

const (
	LinkEther Link = "ether"
	LinkUDP   Link = "udp"
)

type Log struct {
	Level       zapcore.Level
	Development bool
}

type Device struct {
	ID             uint64
	AuthorityURL   string
	Link           Link
	EtherURL       string
	UDPPort        int
	NominalRSSI    int32
	X, Y           float64
	RoleConfigDir  string
	LoopInterval   time.Duration
	BeaconInterval time.Duration
	SyncPeriod     time.Duration
	WaitRole       time.Duration
	PortalRSSI     int32
	Log            Log
}

type Server struct {
	Addr        string
	DatabaseURL string
	Duration    time.Duration
	Pregame     time.Duration
	ZombieEvery int
	StaleAfter  time.Duration
	Log         Log
}

// LoadDotEnv loads the given files, or .env when none are named. Missing
// files are not an error; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// env collects every parse failure instead of stopping at the first.
type env struct {
	get  func(string) string
	errs error
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = multierr.Append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = multierr.Append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v := e.get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = multierr.Append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) millis(key string, def int) time.Duration {
	return time.Duration(e.positive(key, def)) * time.Millisecond
}

func (e *env) seconds(key string, def int) time.Duration {
	return time.Duration(e.positive(key, def)) * time.Second
}

func (e *env) positive(key string, def int) int {
	n := e.int(key, def)
	if n <= 0 {
		e.fail("%s must be positive, got %d", key, n)
		return def
	}
	return n
}

func (e *env) fail(format string, args ...any) {
	e.errs = multierr.Append(e.errs, fmt.Errorf(format, args...))
}

func (e *env) log() Log {
	l := Log{Level: zapcore.InfoLevel, Development: e.bool("LOG_DEV", false)}
	if v := e.get("LOG_LEVEL"); v != "" {
		if err := l.Level.UnmarshalText([]byte(v)); err != nil {
			e.fail("LOG_LEVEL: %v", err)
		}
	}
	return l
}

func (e *env) err() error {
	if e.errs == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, e.errs)
}

func DeviceFromEnv(getenv func(string) string) (Device, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	e := &env{get: getenv}

	d := Device{
		AuthorityURL:   e.str("AUTHORITY_URL", "http://localhost:8080/game"),
		Link:           Link(e.str("LINK", string(LinkEther))),
		EtherURL:       e.str("ETHER_URL", "ws://localhost:8080/ether"),
		UDPPort:        e.int("UDP_PORT", 47800),
		NominalRSSI:    int32(e.int("NOMINAL_RSSI", -60)),
		X:              e.float("POS_X", 0),
		Y:              e.float("POS_Y", 0),
		RoleConfigDir:  e.str("ROLE_CONFIG_DIR", ""),
		LoopInterval:   e.millis("LOOP_INTERVAL_MS", 1000),
		BeaconInterval: e.millis("BEACON_INTERVAL_MS", 250),
		SyncPeriod:     e.millis("SYNC_PERIOD_MS", 2000),
		WaitRole:       e.millis("WAIT_ROLE_TIMEOUT_MS", 600000),
		PortalRSSI:     int32(e.int("PORTAL_RSSI", -60)),
		Log:            e.log(),
	}

	if v := e.get("DEVICE_ID"); v != "" {
		id, err := match.ParseDeviceID(v)
		if err != nil {
			e.fail("DEVICE_ID: %v", err)
		}
		d.ID = id
	} else {
		for d.ID == 0 {
			d.ID = rand.Uint64()
		}
	}

	switch d.Link {
	case LinkEther, LinkUDP:
	default:
		e.fail("LINK must be %q or %q, got %q", LinkEther, LinkUDP, d.Link)
	}
	if d.UDPPort <= 0 || d.UDPPort > 65535 {
		e.fail("UDP_PORT out of range: %d", d.UDPPort)
	}
	return d, e.err()
}

func ServerFromEnv(getenv func(string) string) (Server, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	e := &env{get: getenv}

	s := Server{
		Addr:        e.str("ADDR", ":8080"),
		DatabaseURL: e.str("DATABASE_URL", ""),
		Duration:    e.seconds("MATCH_DURATION_S", 900),
		Pregame:     e.seconds("PREGAME_S", 30),
		ZombieEvery: e.positive("ZOMBIE_EVERY", 4),
		StaleAfter:  e.seconds("STALE_AFTER_S", 30),
		Log:         e.log(),
	}
	return s, e.err()
}
