package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/config"
	"github.com/yumyai/roundup/pkg/metrics"
	"github.com/yumyai/roundup/pkg/runner"
	"github.com/yumyai/roundup/pkg/scheduler"
)

func main() {
	if err := logger.InitLogger(logger.ParseLevel(os.Getenv("LOG_LEVEL"))); err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if len(os.Args) > 1 {
		adminMain(cfg.RedisURL, os.Args[1:])
		return
	}

	logger.Info("Worker starting",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Duration("job_timeout", cfg.SyncTimeout),
		zap.String("queue", cfg.AsyncQueue),
		zap.String("redis", cfg.RedisURL))

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeCache, err := cache.OpenStore(ctx, cfg.CacheDriver, cfg.CacheDSN)
	if err != nil {
		logger.Fatal("Failed to open cache", zap.String("driver", cfg.CacheDriver), zap.Error(err))
	}
	defer closeCache()
	if cfg.CacheDriver == "memory" {
		logger.Warn("Worker is using the memory cache; results will not be visible to the web server")
	}

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	defer client.Close()

	rq, err := scheduler.NewRedisQueue(ctx, cfg.RedisURL, scheduler.DefaultRecordTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rq.Close()

	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(cfg.WorkerMetricsAddr)
	}

	pool := runner.NewPool(rq, client, store, cfg.AsyncQueue, cfg.WorkerConcurrency, cfg.SyncTimeout)
	pool.Start(ctx)

	<-ctx.Done()
	logger.Info("Received shutdown signal, waiting for running jobs")
	pool.Wait()

	logger.Info("Worker shut down successfully")
}

func adminMain(redisURL string, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rq, err := scheduler.NewRedisQueue(ctx, redisURL, scheduler.DefaultRecordTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rq.Close()
	st, err := runAdmin(ctx, rq, args)
	if err != nil {
		logger.Fatal("Admin command failed", zap.Strings("args", args), zap.Error(err))
	}
	logger.Info("Job status", zap.String("job_id", args[1]), zap.String("status", string(st)))
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	logger.Info("Metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("Metrics server failed", zap.Error(err))
	}
}
