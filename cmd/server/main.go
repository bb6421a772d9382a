package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/zombie-proximity/internal/authority"
	"github.com/DoyleJ11/zombie-proximity/internal/config"
	"github.com/DoyleJ11/zombie-proximity/internal/ether"
	"github.com/DoyleJ11/zombie-proximity/internal/httpapi"
	"github.com/DoyleJ11/zombie-proximity/internal/logging"
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
	cfg, err := config.ServerFromEnv(nil)
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

	var store authority.Store = authority.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		gs, err := authority.OpenGormStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer gs.Close()
		store = gs
		log.Info("roster in postgres")
	}

	a := authority.New(ctx, store, authority.Options{
		Duration:    cfg.Duration,
		Pregame:     cfg.Pregame,
		ZombieEvery: cfg.ZombieEvery,
		StaleAfter:  cfg.StaleAfter,
		Log:         log.Named("authority"),
	})
	e := ether.New(ctx, log.Named("ether"))

	// Build the router *with* the authority and ether injected
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(a, e, log.Named("http"))}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
