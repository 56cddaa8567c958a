package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/cache"
	"github.com/industryvis/historian/internal/config"
	"github.com/industryvis/historian/internal/database"
	"github.com/industryvis/historian/internal/metrics"
	"github.com/industryvis/historian/internal/models"
	"github.com/industryvis/historian/internal/processing"
	"github.com/industryvis/historian/internal/query"
)

// Command historian runs the tag-history query service: a validated
// connection pool over a vendor historian database, a fingerprinted
// result cache with background eviction, the processing pipeline and
// an optional cache warmer, with Prometheus metrics.
//
// Usage:
//
//	historian [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-check
//	      test the database connection and exit
//	-start, -end, -tags
//	      run one history query, print the result summary and exit
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	checkOnly := flag.Bool("check", false, "test the database connection and exit")
	queryStart := flag.String("start", "", "run one query: range start (2006-01-02T15:04:05)")
	queryEnd := flag.String("end", "", "run one query: range end")
	queryTags := flag.String("tags", "", "run one query: comma-separated tag names")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)

	profile, err := database.ResolveProfile(cfg.Database.SchemaProfile)
	if err != nil {
		logger.Fatalf("Failed to resolve schema profile: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"server":  cfg.Database.Server,
		"profile": profile.Name(),
		"table":   cfg.Database.Table,
	}).Info("Starting historian service")

	dialer := database.NewSQLDialer(profile, cfg.DatabaseSettings(), logger)
	pool := database.NewPool(dialer, cfg.PoolSettings(), logger)
	defer pool.Close()

	source := database.NewHistorianSource(pool, profile, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *checkOnly {
		checkCtx, checkCancel := context.WithTimeout(ctx, 30*time.Second)
		defer checkCancel()
		if err := source.TestConnection(checkCtx); err != nil {
			logger.Fatalf("Connection test failed: %v", err)
		}
		logger.Info("Connection test succeeded")
		return
	}

	qc := cache.New(cfg.CacheSettings(), logger)

	sweeper := cache.NewSweeper(qc, cfg.SweepInterval(), logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("Failed to start eviction sweep: %v", err)
	}
	defer sweeper.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCacheCollector(qc),
		metrics.NewPoolCollector(pool),
	)
	observer := metrics.NewQueryObserver(registry)

	service := query.NewService(source, qc, cfg.Database.Table, cfg.ProcessingSettings(), observer, logger)

	if err := service.TestConnection(ctx); err != nil {
		logger.Fatalf("Initial connection test failed: %v", err)
	}

	if *queryStart != "" && *queryEnd != "" {
		runQuery(ctx, service, pool, *queryStart, *queryEnd, *queryTags, logger)
		return
	}

	errChan := make(chan error, 1)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logger.WithField("address", cfg.Metrics.Address).Info("Serving metrics")
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				errChan <- err
			}
		}()
	}

	if cfg.Warmup.Enabled {
		go runWarmup(ctx, cfg, qc, source, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errChan:
		logger.Fatalf("Service error: %v", err)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// runQuery executes one history query end to end and reports the
// result alongside cache and pool statistics.
func runQuery(ctx context.Context, service *query.Service, pool *database.Pool, start, end, tags string, logger *logrus.Logger) {
	params := models.QueryParams{StartTime: start, EndTime: end}
	if tags != "" {
		params.Tags = strings.Split(tags, ",")
	}

	result, err := service.QueryHistoryV2(ctx, params, nil, false)
	if err != nil {
		logger.Fatalf("Query failed: %v", err)
	}

	stats := service.CacheStats()
	state := pool.State()
	logger.WithFields(logrus.Fields{
		"series":      len(result.Series),
		"totalRaw":    result.TotalRaw,
		"processed":   result.TotalProcessed,
		"cacheHit":    result.CacheHit,
		"queryTimeMs": result.QueryTimeMs,
		"cacheMemory": stats.EstimatedMemoryBytes,
		"poolOpen":    state.Connections,
	}).Info("Query complete")
}

// runWarmup preloads the cache with the most recent days of history
// for the configured tags.
func runWarmup(ctx context.Context, cfg *config.Config, qc *cache.QueryCache, source *database.HistorianSource, logger *logrus.Logger) {
	strategy := cache.RecentTimeRangeStrategy{
		Table: cfg.Database.Table,
		Tags:  cfg.Warmup.Tags,
		Days:  cfg.Warmup.RecentDays,
	}

	warmer := cache.NewWarmer(qc, cfg.Warmup.QPS, logger)
	fetcher := func(ctx context.Context, task cache.WarmupTask) ([]models.HistoryRecord, error) {
		records, err := source.QueryHistory(ctx, task.Table, task.StartTime, task.EndTime, task.Tags)
		if err != nil {
			return nil, err
		}
		return processing.ProcessQueryResult(records, task.Processing, cfg.ProcessingSettings(), logger), nil
	}

	if _, err := warmer.Warm(ctx, strategy.Tasks(), fetcher); err != nil {
		logger.WithError(err).Warn("Cache warmup aborted")
	}
}
