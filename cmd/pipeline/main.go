package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/user/ingest-pipeline/internal/api"
	"github.com/user/ingest-pipeline/internal/cache"
	"github.com/user/ingest-pipeline/internal/config"
	"github.com/user/ingest-pipeline/internal/discover"
	"github.com/user/ingest-pipeline/internal/extract"
	"github.com/user/ingest-pipeline/internal/fetch"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/pipeline"
	"github.com/user/ingest-pipeline/internal/ratelimit"
	"github.com/user/ingest-pipeline/internal/retry"
	"github.com/user/ingest-pipeline/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once over all sources and exit")
	flag.Parse()

	bootLogger, _ := zap.NewProduction()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("could not load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Fatal("could not load sources", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := monitoring.New(prometheus.DefaultRegisterer)

	// Cache layer
	var (
		fetchCache  cache.Cache
		cachePinger api.Pinger
	)
	switch cfg.CacheBackend {
	case "redis":
		rc := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL(), logger)
		fetchCache, cachePinger = rc, rc
	default:
		fetchCache = cache.NewMemory(cfg.CacheTTL())
	}

	// Storage layer
	var (
		store    storage.Store
		failures storage.FailureLog
	)
	switch cfg.StoreBackend {
	case "memory":
		store = storage.NewMemory()
		failures = storage.NewMemoryFailureLog()
	default:
		pg, err := storage.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		failures = pg.FailureLog()
	}

	// Fetch stack: cache -> compliance -> rate limiter -> retry -> network
	limiter := ratelimit.New(cfg.RatePerSecond, cfg.RateBurst)
	retrier := retry.NewExecutor(cfg.MaxRetries, cfg.RetryBaseDelay(), logger)
	var rendered fetch.Fetcher
	if anyRenderJS(sources) {
		rr := fetch.NewRendered(cfg.FetchTimeoutDuration())
		defer rr.Close()
		rendered = rr
	}
	client := fetch.NewClient(
		fetchCache, limiter, retrier, fetch.DefaultPolicy{},
		fetch.NewHTTP(cfg.FetchTimeoutDuration()), rendered,
		metrics, logger,
	)

	// Extraction capabilities
	registry := extract.NewRegistry(extract.Article{})
	validator := extract.NewRecordValidator()

	discoverer := discover.New(client, cfg.DiscoverBatch, logger)
	pool := pipeline.NewPool(client, registry, validator, failures, metrics, logger, cfg.CrawlWorkers, cfg.BatchPause())
	orchestrator := pipeline.NewOrchestrator(
		sources, discoverer, pool, store, fetchCache, metrics, logger,
		cfg.MaxURLs, cfg.MaxArticles,
	)

	if *once {
		if _, err := orchestrator.Run(ctx); err != nil {
			logger.Fatal("pipeline run failed", zap.Error(err))
		}
		return
	}

	server := api.NewServer(cfg, orchestrator, store, cachePinger, logger, ctx)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("port", cfg.ServerPort),
		zap.Int("sources", len(sources)))

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func anyRenderJS(sources []config.Source) bool {
	for _, s := range sources {
		if s.Ruleset.RenderJS {
			return true
		}
	}
	return false
}
