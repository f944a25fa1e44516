package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medagenda/clinic-scheduling/internal/api"
	"github.com/medagenda/clinic-scheduling/internal/assistant"
	"github.com/medagenda/clinic-scheduling/internal/config"
	"github.com/medagenda/clinic-scheduling/internal/db"
	"github.com/medagenda/clinic-scheduling/internal/notify"
	"github.com/medagenda/clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/internal/scheduling"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("running", "env", cfg.Env, "http_port", cfg.HTTPPort)

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
	logger.Info("connected to Redis")

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

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, logger); sg != nil {
		sender = sg
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(sender, logger)

	svc := scheduling.NewService(repo, locker, directory, resolver, scheduling.Options{
		Location:     loc,
		CancelCutoff: cfg.CancelCutoff,
		Weights:      cfg.Reconcile,
		Metrics:      schedulingMetrics,
		Notifier:     notifier,
		Logger:       logger,
	})

	bridge := assistant.NewBridge(svc, repo, assistant.BridgeOptions{
		HorizonDays: cfg.IntakeHorizonDays,
		Logger:      logger,
	})
	sessions := assistant.NewSessionStore(rdb, cfg.SessionTTL)

	router := api.NewRouter(api.RouterConfig{
		Service:         svc,
		Directory:       directory,
		Bridge:          bridge,
		Sessions:        sessions,
		PgPool:          pgPool,
		Redis:           rdb,
		SlotHorizonDays: cfg.SearchHorizonDays,
		Location:        loc,
		Gatherer:        registry,
		Logger:          logger,
		Env:             cfg.Env,
		Version:         version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
