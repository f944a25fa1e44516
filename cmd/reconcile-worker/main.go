package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medagenda/clinic-scheduling/internal/config"
	"github.com/medagenda/clinic-scheduling/internal/db"
	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/internal/scheduling"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reconcile-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	dryRun := os.Getenv("RECONCILE_DRY_RUN") == "true"
	logger := logging.New(cfg.LogLevel)
	logger.Info("running reconcile worker", "env", cfg.Env, "interval", cfg.WorkerInterval.String(), "dry_run", dryRun)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		PoolSize:    cfg.RedisPoolSize,
		ReadTimeout: cfg.RedisTimeout,
	})
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		log.Fatalf("invalid clinic timezone: %v", err)
	}
	grid, err := scheduling.NewSlotGrid(cfg.GridStart, cfg.GridEnd, cfg.GridStepMinutes)
	if err != nil {
		log.Fatalf("invalid slot grid: %v", err)
	}

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	directory := scheduling.NewDirectory(repo)
	resolver := scheduling.NewResolver(repo, grid, loc, nil)
	svc := scheduling.NewService(repo, locker, directory, resolver, scheduling.Options{
		Location:     loc,
		CancelCutoff: cfg.CancelCutoff,
		Weights:      cfg.Reconcile,
		Logger:       logger,
	})

	runOnce(rootCtx, svc, logger, dryRun)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger, dryRun)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, logger *logging.Logger, dryRun bool) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	stats, err := svc.ReconcilePastAppointments(runCtx, dryRun)
	if err != nil {
		logger.Error("reconcile run error", "error", err)
		return
	}
	logger.Info("reconcile run finished",
		"duration", time.Since(start).String(),
		"total", stats.Total,
		"completed", stats.Completed,
		"expired", stats.Expired,
		"cancelled", stats.Cancelled,
		"dry_run", dryRun,
	)
}
