package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/zombie-proximity/internal/clock"
	"github.com/DoyleJ11/zombie-proximity/internal/config"
	"github.com/DoyleJ11/zombie-proximity/internal/device"
	"github.com/DoyleJ11/zombie-proximity/internal/engine"
	"github.com/DoyleJ11/zombie-proximity/internal/logging"
	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/radio"
	"github.com/DoyleJ11/zombie-proximity/internal/records"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
	"github.com/DoyleJ11/zombie-proximity/internal/roleconfig"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.DeviceFromEnv(nil)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link, err := newLink(cfg, log)
	if err != nil {
		return err
	}
	clk := clock.System()
	store := records.NewStore(cfg.ID, records.DefaultCapacity)
	src := roleconfig.New(cfg.RoleConfigDir)
	tr := radio.New(link, clk, radio.WithLogger(log.Named("radio")))
	defer tr.Close()

	eng := engine.New(store, src, engine.Rules{LoopInterval: cfg.LoopInterval, Respawn: engine.DefaultRespawn}, log.Named("engine"))
	coord := match.NewCoordinator(match.NewHTTPAuthority(cfg.AuthorityURL), cfg.ID, match.Options{
		Period: cfg.SyncPeriod,
		Log:    log.Named("match"),
	})

	coord.SetState(presetRole(src, log), match.StatusIdle, 0)
	assigned, err := coord.WaitForRole(ctx, cfg.WaitRole)
	if err != nil {
		return err
	}
	if err := eng.Start(clk.NowMs(), assigned.Role, assigned.Pregame, assigned.Duration); err != nil {
		return err
	}

	dev := device.New(store, tr, eng, coord, clk, device.Options{
		BeaconInterval: cfg.BeaconInterval,
		PortalRSSI:     cfg.PortalRSSI,
		Log:            log.Named("device"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.SyncLoop(gctx) })
	g.Go(func() error { return dev.Run(gctx) })
	return g.Wait()
}

func newLink(cfg config.Device, log *zap.Logger) (radio.Link, error) {
	switch cfg.Link {
	case config.LinkUDP:
		return &radio.UDPLink{Port: cfg.UDPPort, NominalRSSI: cfg.NominalRSSI, Log: log.Named("udp")}, nil
	default:
		u, err := url.Parse(cfg.EtherURL)
		if err != nil {
			return nil, fmt.Errorf("ETHER_URL: %w", err)
		}
		q := u.Query()
		q.Set("id", match.FormatDeviceID(cfg.ID))
		q.Set("x", strconv.FormatFloat(cfg.X, 'f', -1, 64))
		q.Set("y", strconv.FormatFloat(cfg.Y, 'f', -1, 64))
		u.RawQuery = q.Encode()
		return &radio.EtherLink{URL: u.String(), Log: log.Named("ether")}, nil
	}
}

// presetRole is the role saved by the setup portal, if any. Devices
// without one report neutral and wait for an assignment.
func presetRole(src *roleconfig.Source, log *zap.Logger) role.Role {
	data, err := src.LoadDevice()
	if err != nil {
		return role.None
	}
	c, err := records.ParseConfig(data)
	if err != nil {
		log.Warn("ignoring saved device configuration", zap.Error(err))
		return role.None
	}
	log.Info("using saved role", zap.Stringer("role", *c.DeviceRole))
	return *c.DeviceRole
}
