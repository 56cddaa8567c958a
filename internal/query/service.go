// Package query orchestrates the request path: fingerprint, cache
// lookup, backing-store fetch, processing pipeline, cache store and
// pagination.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/apperr"
	"github.com/industryvis/historian/internal/cache"
	"github.com/industryvis/historian/internal/metrics"
	"github.com/industryvis/historian/internal/models"
	"github.com/industryvis/historian/internal/processing"
)

// Source is the backing-store access the service needs; satisfied by
// database.HistorianSource.
type Source interface {
	QueryHistory(ctx context.Context, table, startTime, endTime string, tags []string) ([]models.HistoryRecord, error)
	AvailableTags(ctx context.Context, table string) ([]string, error)
	SearchTags(ctx context.Context, keyword string, limit int) ([]string, error)
	ListTables(ctx context.Context) ([]models.TableInfo, error)
	TestConnection(ctx context.Context) error
}

// Service coordinates the cache, the source and the processing pipeline
// behind one query API. All collaborators are injected at construction;
// the service holds no global state.
type Service struct {
	source       Source
	cache        *cache.QueryCache
	defaultTable string
	opts         processing.Options
	observer     *metrics.QueryObserver
	logger       *logrus.Logger
}

// NewService creates the query service. observer may be nil.
func NewService(
	source Source,
	qc *cache.QueryCache,
	defaultTable string,
	opts processing.Options,
	observer *metrics.QueryObserver,
	logger *logrus.Logger,
) *Service {
	return &Service{
		source:       source,
		cache:        qc,
		defaultTable: defaultTable,
		opts:         opts,
		observer:     observer,
		logger:       logger,
	}
}

// DefaultTable returns the configured history table.
func (s *Service) DefaultTable() string { return s.defaultTable }

// CacheStats exposes the cache statistics snapshot.
func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// ClearCache drops all cached results and statistics.
func (s *Service) ClearCache() { s.cache.Clear() }

// TestConnection probes the backing store.
func (s *Service) TestConnection(ctx context.Context) error {
	return s.source.TestConnection(ctx)
}

// CheckConnection probes the backing store and folds the outcome into a
// displayable result.
func (s *Service) CheckConnection(ctx context.Context) models.ConnectionTestResult {
	if err := s.source.TestConnection(ctx); err != nil {
		return models.ConnectionTestResult{Success: false, Message: err.Error()}
	}
	return models.ConnectionTestResult{Success: true, Message: "connection successful"}
}

// AvailableTags lists the tags in the default table.
func (s *Service) AvailableTags(ctx context.Context) ([]string, error) {
	return s.source.AvailableTags(ctx, s.defaultTable)
}

// SearchTags finds tags by substring.
func (s *Service) SearchTags(ctx context.Context, keyword string, limit int) ([]string, error) {
	return s.source.SearchTags(ctx, keyword, limit)
}

// ListTables enumerates the base tables in the backing store.
func (s *Service) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	return s.source.ListTables(ctx)
}

// QueryHistory serves the flat result shape. The cache is consulted
// unless forceRefresh is set; a miss queries the store, runs the
// processing pipeline, stores the processed result and paginates it.
// Total always reflects the record count before pagination.
func (s *Service) QueryHistory(
	ctx context.Context,
	params models.QueryParams,
	cfg *models.ProcessingConfig,
	forceRefresh bool,
) (*models.QueryResult, error) {
	start := time.Now()
	log := s.requestLogger(params)

	if err := validateParams(params); err != nil {
		return nil, err
	}

	key := cache.NewKey(s.defaultTable, params.StartTime, params.EndTime, params.Tags, cfg)

	if !forceRefresh {
		if cached, ok := s.cache.Get(key); ok {
			log.WithField("records", len(cached)).Info("serving from cache")
			s.observe(start, true)
			return &models.QueryResult{
				Records: applyPagination(cached, params.Offset, params.Limit),
				Total:   len(cached),
			}, nil
		}
	}

	processed, _, err := s.fetchAndProcess(ctx, params, cfg, key, log)
	if err != nil {
		return nil, err
	}

	s.observe(start, false)
	return &models.QueryResult{
		Records: applyPagination(processed, params.Offset, params.Limit),
		Total:   len(processed),
	}, nil
}

// QueryHistoryV2 serves the pre-grouped result shape with cache-hit and
// timing metadata.
func (s *Service) QueryHistoryV2(
	ctx context.Context,
	params models.QueryParams,
	cfg *models.ProcessingConfig,
	forceRefresh bool,
) (*models.QueryResultV2, error) {
	start := time.Now()
	log := s.requestLogger(params)

	if err := validateParams(params); err != nil {
		return nil, err
	}

	key := cache.NewKey(s.defaultTable, params.StartTime, params.EndTime, params.Tags, cfg)

	if !forceRefresh {
		if cached, ok := s.cache.Get(key); ok {
			elapsed := time.Since(start)
			log.WithFields(logrus.Fields{
				"records": len(cached),
				"elapsed": elapsed.String(),
			}).Info("serving series from cache")
			s.observe(start, true)
			return &models.QueryResultV2{
				Series:         processing.RecordsToSeries(cached),
				TotalRaw:       len(cached),
				TotalProcessed: len(cached),
				CacheHit:       true,
				QueryTimeMs:    elapsed.Milliseconds(),
			}, nil
		}
	}

	processed, totalRaw, err := s.fetchAndProcess(ctx, params, cfg, key, log)
	if err != nil {
		return nil, err
	}

	series := processing.RecordsToSeries(processed)
	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{
		"records": len(processed),
		"series":  len(series),
		"elapsed": elapsed.String(),
	}).Info("query complete")

	s.observe(start, false)
	return &models.QueryResultV2{
		Series:         series,
		TotalRaw:       totalRaw,
		TotalProcessed: len(processed),
		CacheHit:       false,
		QueryTimeMs:    elapsed.Milliseconds(),
	}, nil
}

// fetchAndProcess runs the miss path: store query, pipeline, cache
// store. Returns the processed records and the raw record count.
func (s *Service) fetchAndProcess(
	ctx context.Context,
	params models.QueryParams,
	cfg *models.ProcessingConfig,
	key cache.Key,
	log *logrus.Entry,
) ([]models.HistoryRecord, int, error) {
	records, err := s.source.QueryHistory(ctx, s.defaultTable, params.StartTime, params.EndTime, params.Tags)
	if err != nil {
		return nil, 0, err
	}
	totalRaw := len(records)
	log.WithField("records", totalRaw).Debug("raw records fetched")

	processed := processing.ProcessQueryResult(records, cfg, s.opts, s.logger)
	s.cache.Put(key, processed)
	return processed, totalRaw, nil
}

func (s *Service) requestLogger(params models.QueryParams) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"component":  "query-service",
		"request_id": uuid.NewString(),
		"table":      s.defaultTable,
		"start":      params.StartTime,
		"end":        params.EndTime,
		"tags":       len(params.Tags),
	})
}

func (s *Service) observe(start time.Time, cacheHit bool) {
	if s.observer != nil {
		s.observer.Observe(time.Since(start), cacheHit)
	}
}

// validateParams surfaces caller-data problems before any work happens.
func validateParams(params models.QueryParams) error {
	if params.StartTime == "" || params.EndTime == "" {
		return apperr.New(apperr.KindValidation, "start and end time are required")
	}
	if params.StartTime > params.EndTime {
		return apperr.New(apperr.KindValidation,
			"start time %q is after end time %q", params.StartTime, params.EndTime)
	}
	if params.Limit < 0 || params.Offset < 0 {
		return apperr.New(apperr.KindValidation, "limit and offset must be non-negative")
	}
	return nil
}

// applyPagination slices records by offset and limit; zero values mean
// "not set".
func applyPagination(records []models.HistoryRecord, offset, limit int) []models.HistoryRecord {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
