// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Worker is the entry point for the Yomira ingestion and discovery fleet.

Each process runs the same three roles: a pool of job processors
draining the named queues, a leader-locked master scheduler (only one
instance fleet-wide wins each tick), and the search dispatcher's
deferred-retry hooks. Horizontal scaling is a deployment knob, not a
code change; every job carries a deterministic ID and every write is
idempotent, so adding processes only adds throughput.

Usage:

	go run cmd/worker/main.go

The flags/environment variables are:

	ENVIRONMENT        deployment environment (development, production)
	DATABASE_URL       Postgres connection string (required)
	DATABASE_READ_URL  read-replica DSN (falls back to DATABASE_URL)
	REDIS_WORKER_URL   Redis for queues/locks (falls back to REDIS_URL)
	WORKER_INSTANCES   processor pool size (default: NumCPU)
	HEALTH_PORT        /healthz + /metrics listener (default: 8081)

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. Storage: Establish connections to Postgres and Redis.
 4. Migration: Run idempotent schema updates.
 5. KV: Locks, token buckets, heartbeat, heat, gates.
 6. Wiring: Scrapers, rate limiter, queues, processors, scheduler.
 7. Serve: Health listener, heartbeat loop, pool, scheduler loop.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira/internal/core/chapter"
	"github.com/taibuivan/yomira/internal/core/library"
	"github.com/taibuivan/yomira/internal/core/notify"
	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/config"
	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/platform/metrics"
	"github.com/taibuivan/yomira/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira/internal/platform/redis"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/ratelimit"
	"github.com/taibuivan/yomira/internal/scheduler"
	"github.com/taibuivan/yomira/internal/scraper"
	"github.com/taibuivan/yomira/internal/search"
	"github.com/taibuivan/yomira/internal/worker"
)

// queueDepthSampleInterval is how often the fleet refreshes the
// queue-depth gauges.
const queueDepthSampleInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("worker_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", "yomira-worker"))
	slog.SetDefault(log)

	log.Info("[Yomira] worker_initializing")

	// # 2. Configuration
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "yomira-worker"))
		slog.SetDefault(log)
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("worker_instances", cfg.WorkerInstances),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. PostgreSQL
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	// A separate read pool only when a replica DSN is configured; the
	// search dispatcher's local catalogue queries go there.
	readPool := pool
	if cfg.ReadDatabaseURL() != cfg.DatabaseURL {
		readPool, err = pgstore.NewPool(startupCtx, cfg.ReadDatabaseURL(), log)
		if err != nil {
			return fmt.Errorf("connect to read replica: %w", err)
		}
		defer readPool.Close()
	}

	// # 4. Redis
	rdb, err := connectRedis(startupCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// # 5. Migrations
	// Idempotent; whichever fleet process starts first applies them, the
	// rest no-op.
	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// # 6. KV Primitives
	keys := kv.NewKeys(cfg.Environment)
	locker := kv.NewLocker(rdb, keys)
	bucket := kv.NewTokenBucket(rdb, keys)
	heartbeat := kv.NewHeartbeat(rdb, keys)
	gate := kv.NewGate(rdb)
	kvClient := kv.NewClient(rdb)
	heat := kv.NewHeat(kvClient, keys)

	// # 7. Scrapers & Rate Limiter
	breaker := scraper.NewCircuitBreaker(rdb, keys)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	scrapers := scraper.NewRegistry(breaker, httpClient)

	sources := []string{
		string(scraper.MangaDex),
		string(scraper.MangaPark),
		string(scraper.Comick),
		string(scraper.MangaSee),
	}
	limiter, err := ratelimit.NewLimiter(bucket, sources)
	if err != nil {
		return fmt.Errorf("initialize rate limiter: %w", err)
	}

	// # 8. Queues
	queues := worker.Queues{
		CheckSource:                 queue.New(rdb, keys, "check-source"),
		SyncSource:                  queue.New(rdb, keys, "sync-source"),
		Canonicalize:                queue.New(rdb, keys, "canonicalize"),
		ChapterIngest:               queue.New(rdb, keys, "chapter-ingest"),
		NotificationFanout:          queue.New(rdb, keys, "notification-fanout"),
		NotificationDelivery:        queue.New(rdb, keys, "notification-delivery"),
		NotificationDeliveryPremium: queue.New(rdb, keys, "notification-delivery-premium"),
	}

	// # 9. Domain Wiring (Shared Repositories)
	seriesRepo := series.NewRepository(pool)
	chapterRepo := chapter.NewRepository(pool)
	libraryRepo := library.NewRepository(pool)
	notifyRepo := notify.NewRepository(pool)

	chapterSvc := chapter.NewService(chapterRepo, seriesRepo, log)
	notifySvc := notify.NewService(libraryRepo, notifyRepo, log)

	// # 10. Processors & Pool
	processors := worker.NewProcessors(worker.Deps{
		Scrapers:  scrapers,
		RateLimit: limiter,
		Chapters:  chapterSvc,
		Series:    seriesRepo,
		Notify:    notifySvc,
		Queues:    queues,
		Logger:    log,
	})
	workerPool := worker.NewPool(queues.All(), processors.Registry(), log, cfg.WorkerInstances)

	// # 11. Search Dispatcher & Scheduler
	searchSeriesRepo := series.NewRepository(readPool)
	deferred := search.NewDeferredSet(kvClient, heat, heartbeat, queues.CheckSource, keys, log)
	dispatcher := search.NewDispatcher(searchSeriesRepo, gate, heat, heartbeat, queues.CheckSource, deferred, keys, log)
	searchHdl := search.NewHandler(dispatcher)

	master := scheduler.NewMaster(locker, seriesRepo, queues, deferred, log)

	// The cover pipeline is owned by the media service; the scheduler's
	// cover-refresh step only drops a cycle marker on its queue. The
	// deterministic job ID collapses the signal until the consumer acks.
	coverRefreshQueue := queue.New(rdb, keys, "cover-refresh")
	master.CoverRefresh = func(ctx context.Context) error {
		_, err := coverRefreshQueue.Add(ctx, "cover-refresh", struct{}{}, queue.Options{
			JobID:    "cover-refresh-cycle",
			Priority: queue.PriorityLow,
		})
		return err
	}

	// # 12. Health & Metrics Listener
	reg := metrics.NewRegistry()
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pgstore.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := redisstore.Ping(r.Context(), rdb); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Mount("/internal/search", searchHdl.Routes())

	healthSrv := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// # 13. Lifecycle
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	shutdownErr := make(chan error, 1)
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("health_server_crash: %w", err)
		}
	}()

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s:%d", hostname, os.Getpid())
	go heartbeat.Run(appCtx, workerID)
	go master.Run(appCtx)
	go sampleQueueDepths(appCtx, queues)

	poolDone := make(chan struct{})
	go func() {
		workerPool.Run(appCtx)
		close(poolDone)
	}()

	log.Info("yomira_worker_running",
		slog.String("worker_id", workerID),
		slog.String("health_port", cfg.HealthPort),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	// Graceful drain: stop reserving new jobs, wait for in-flight ones.
	appCancel()
	select {
	case <-poolDone:
	case <-time.After(30 * time.Second):
		log.Warn("worker_pool_drain_timeout")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health_server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// connectRedis prefers Sentinel when configured, otherwise the worker
// URL with fallback to the shared REDIS_URL.
func connectRedis(ctx context.Context, cfg *config.WorkerConfig, log *slog.Logger) (*goredis.Client, error) {
	if len(cfg.RedisSentinelHosts) > 0 {
		return redisstore.NewSentinelClient(ctx, cfg.RedisSentinelHosts, cfg.RedisSentinelMasterName, log)
	}
	return redisstore.NewClient(ctx, cfg.WorkerRedisURL(), log)
}

// sampleQueueDepths refreshes the waiting-depth gauges until ctx ends.
func sampleQueueDepths(ctx context.Context, queues worker.Queues) {
	ticker := time.NewTicker(queueDepthSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			worker.RefreshQueueDepthMetrics(ctx, queues.All())
		}
	}
}
