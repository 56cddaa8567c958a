package database

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/apperr"
	"github.com/industryvis/historian/internal/models"
)

// HistorianSource executes historian queries through the pool using a
// schema profile for SQL generation and row mapping.
type HistorianSource struct {
	pool    *Pool
	profile SchemaProfile
	logger  *logrus.Entry
}

// NewHistorianSource creates a source over an existing pool.
func NewHistorianSource(pool *Pool, profile SchemaProfile, logger *logrus.Logger) *HistorianSource {
	return &HistorianSource{
		pool:    pool,
		profile: profile,
		logger: logger.WithFields(logrus.Fields{
			"component": "source",
			"profile":   profile.Name(),
		}),
	}
}

// Pool exposes the underlying pool for observability.
func (s *HistorianSource) Pool() *Pool { return s.pool }

// Profile exposes the active schema profile.
func (s *HistorianSource) Profile() SchemaProfile { return s.profile }

// TestConnection performs a connection round trip.
func (s *HistorianSource) TestConnection(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.PingContext(ctx); err != nil {
		conn.Discard()
		return apperr.Wrap(apperr.KindConnection, err, "test query failed")
	}
	return nil
}

// QueryHistory fetches raw history records for a table and time range,
// optionally restricted to a tag set.
func (s *HistorianSource) QueryHistory(ctx context.Context, table, startTime, endTime string, tags []string) ([]models.HistoryRecord, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	filter := s.profile.BuildTagFilter(tags)
	query := s.profile.HistoryQuerySQL(table, startTime, endTime, filter)

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err,
			"history query failed for table %q [%s .. %s]", table, startTime, endTime)
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		r, err := s.profile.MapRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err,
			"history result iteration failed for table %q", table)
	}

	s.logger.WithFields(logrus.Fields{
		"table":   table,
		"records": len(records),
	}).Debug("history query complete")
	return records, nil
}

// AvailableTags lists every distinct tag present in a history table.
func (s *HistorianSource) AvailableTags(ctx context.Context, table string) ([]string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, s.profile.AvailableTagsSQL(table))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err, "tag listing failed for table %q", table)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// SearchTags finds tags whose name contains keyword, limited to limit
// results. The keyword is passed as a bound LIKE parameter.
func (s *HistorianSource) SearchTags(ctx context.Context, keyword string, limit int) ([]string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	pattern := "%" + keyword + "%"
	rows, err := conn.QueryContext(ctx, s.profile.TagSearchSQL(limit), pattern)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err, "tag search failed for keyword %q", keyword)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// ListTables enumerates the base tables in the backing store.
func (s *HistorianSource) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, s.profile.ListTablesSQL())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err, "table listing failed")
	}
	defer rows.Close()

	var tables []models.TableInfo
	for rows.Next() {
		var t models.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, apperr.Wrap(apperr.KindQuery, err, "table row mapping failed")
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err, "table listing iteration failed")
	}
	return tables, nil
}

type rowIter interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanStrings(rows rowIter) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperr.Wrap(apperr.KindQuery, err, "string row mapping failed")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindQuery, err, "string result iteration failed")
	}
	return out, nil
}
