package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/yumyai/roundup/internal/util"
	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/config"
	mydb "github.com/yumyai/roundup/pkg/db"
	"github.com/yumyai/roundup/pkg/handler"
	"github.com/yumyai/roundup/pkg/middle"
	"github.com/yumyai/roundup/pkg/orchestrator"
	"github.com/yumyai/roundup/pkg/render"
	"github.com/yumyai/roundup/pkg/result"
	"github.com/yumyai/roundup/pkg/runner"
	"github.com/yumyai/roundup/pkg/scheduler"
)

const VERSION = "0.1.0"

func main() {

	// Establish logger
	if err := logger.InitLogger(logger.ParseLevel(os.Getenv("LOG_LEVEL"))); err != nil {
		panic(err)
	}
	defer logger.Sync() // Make sure that the buffered is flushed.

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Start:", zap.String("Version", VERSION))
	logger.Info("Open database on", zap.String("DB_LOC", cfg.CatalogDB))

	// Connect to catalog db
	catalog, err := sql.Open("sqlite", cfg.CatalogDB)
	if err != nil {
		logger.Fatal("Failed to open catalog", zap.Error(err))
	}
	defer catalog.Close()

	seqdb, err := mydb.NewSequenceDB(cfg.SequenceDBDir, cfg.BlastDBDir)
	if err != nil {
		logger.Warn("Sequence lookups disabled", zap.Error(err))
	}
	rdb := mydb.NewRoundupDB(catalog)
	genomes := mydb.NewGenomeCatalog(rdb.ListGenomes, cfg.GenomeRefresh)
	go reloadGenomesOnHangup(ctx, genomes)

	store, closeCache, err := cache.OpenStore(ctx, cfg.CacheDriver, cfg.CacheDSN)
	if err != nil {
		logger.Fatal("Failed to open cache", zap.String("driver", cfg.CacheDriver), zap.Error(err))
	}
	defer closeCache()

	if !util.DirExists(cfg.ResultRoot) {
		if err := os.MkdirAll(cfg.ResultRoot, 0o755); err != nil {
			logger.Fatal("Failed to create result root", zap.String("dir", cfg.ResultRoot), zap.Error(err))
		}
	}
	results := result.NewStore(cfg.ResultRoot)

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	defer client.Close()

	// Without redis, large queries fail at dispatch and get the generic error page.
	var queue runner.Queue
	if rq, err := scheduler.NewRedisQueue(ctx, cfg.RedisURL, scheduler.DefaultRecordTTL); err != nil {
		logger.Warn("Batch queue unavailable", zap.String("redis", cfg.RedisURL), zap.Error(err))
	} else {
		defer rq.Close()
		queue = rq
	}

	run := runner.New(client, store, queue, cfg.SyncTimeout)
	orch := orchestrator.New(rdb, store, run, results, orchestrator.Config{
		SyncGenomeLimit:   cfg.SyncGenomeLimit,
		AsyncQueue:        cfg.AsyncQueue,
		UnknownRetryDelay: cfg.UnknownRetryDelay,
		EvictStaleCache:   cfg.EvictStaleCache,
	})

	app := &handler.AppContext{
		Genomes:      genomes,
		GeneNames:    rdb,
		Orchestrator: orch,
		Results:      results,
		Cache:        store,
		Renderers:    render.DefaultRegistry(client),
		MaxGenomes:   cfg.MaxGenomes,
		WaitDelay:    cfg.WaitDelay,
	}
	if seqdb != nil {
		app.Sequences = seqdb
	}

	mux := handler.NewRouter(app, "./static")
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           middle.Chain(mux, middle.RequestIDMiddleware, middle.LoggingMiddleware(logger.L())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Error starting server:", zap.String("error message", err.Error()))
	}
}

// reloadGenomesOnHangup drops the cached genome list on SIGHUP so a freshly
// loaded dataset shows up without a restart.
func reloadGenomesOnHangup(ctx context.Context, genomes *mydb.GenomeCatalog) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("Reloading genome list")
			genomes.Refresh()
		}
	}
}
