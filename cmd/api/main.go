package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"safemap/internal/api"
	"safemap/internal/cache"
	"safemap/internal/config"
	"safemap/internal/directions"
	"safemap/internal/scoring"
	"safemap/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("SAFEMAP_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = base.Close() }()
	st := store.NewTimed(base, cfg.Store.QueryTimeout)

	var hc cache.Cache = cache.NewMemory(cfg.Cache.TTL, cfg.Cache.Capacity)
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.TTL, log)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = rc.Ping(pingCtx)
			cancel()
			if err != nil {
				_ = rc.Close()
			}
		}
		if err != nil {
			log.Warn("redis cache unavailable, using in-process cache", "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			hc = rc
		}
	}

	driver := directions.NewDriver(cfg.Directions.AttemptTimeout, log,
		directions.NewPrimary(cfg.Directions.RoutesAPIKey, cfg.Directions.RoutesBaseURL),
		directions.NewLegacy(cfg.Directions.DirectionsAPIKey, cfg.Directions.DirectionsURL),
		directions.Sampled{Steps: cfg.Safety.DefaultSteps, TileSizeMeters: cfg.Safety.TileSizeMeters},
	)

	engine, err := scoring.NewEngine(cfg.Safety, st, hc, driver, log)
	if err != nil {
		return err
	}
	srvDeps := api.NewServer(engine, st, cfg.Server, log)
	go srvDeps.Janitor(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", "addr", cfg.Server.Addr, "store", storeKind(cfg.Store.DSN), "redis", cfg.Cache.RedisURL != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func storeKind(dsn string) string {
	switch {
	case dsn == "":
		return "memory"
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite"
	default:
		return "postgres"
	}
}
