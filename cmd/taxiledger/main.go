package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"taxiledger/internal/cache"
	"taxiledger/internal/cli"
	apphttp "taxiledger/internal/http"
	"taxiledger/internal/log"
	"taxiledger/internal/metrics"
	"taxiledger/internal/services"
)

const (
	dashboardCacheSize = 256
	viewCacheTTL       = 10 * time.Minute
	cacheCleanupEvery  = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if be.Cleanup == nil {
			return
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	if cfg.SeedDemo {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		seeded, err := be.Repository.Seed(ctx, time.Now().In(cfg.Location()), rng)
		if err != nil {
			logger.Error("Demo seed failed", log.FieldError, err, log.FieldOperation, log.OpSeed)
			os.Exit(1)
		}
		if seeded {
			logger.Info("Demo license installed", log.FieldOperation, log.OpSeed)
		}
	}

	dashboards := cache.NewLRUCache[services.Dashboard](dashboardCacheSize, viewCacheTTL)
	overviews := cache.NewLRUCache[services.Overview](dashboardCacheSize, viewCacheTTL)

	// sessions is assigned below; the gauge only runs on scrape.
	var sessions *services.SessionStore
	m := metrics.New(func() int {
		if sessions == nil {
			return 0
		}
		return sessions.Len()
	})

	opts := services.Options{
		Observer:   m,
		Dashboards: dashboards,
		Overviews:  overviews,
		Location:   cfg.Location(),
	}
	if be.Events != nil {
		opts.Publisher = be.Events
	}
	svc := services.NewLedgerService(be.Repository, opts)
	sessions = services.NewSessionStore(svc, cfg.MaxSessions, cfg.SessionIdleTimeout)

	caches := cache.NewManager()
	caches.Register(dashboards)
	caches.Register(overviews)
	caches.Register(sessions.Cache())
	caches.StartCleanup(cacheCleanupEvery)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, sessions, apphttp.Options{
		Logger:            logger,
		Metrics:           m,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		BlockSuspicious:   cfg.BlockSuspicious,
		Ready:             be.Ready,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting taxiledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", be.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
