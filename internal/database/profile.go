package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/industryvis/historian/internal/apperr"
	"github.com/industryvis/historian/internal/models"
)

// RowScanner abstracts one result row for mapping. *sql.Rows satisfies
// it.
type RowScanner interface {
	Scan(dest ...interface{}) error
}

// SchemaProfile is the vendor strategy behind the query API: it renders
// SQL for the target dialect and maps result rows into HistoryRecord.
// Table identifiers and string literals embedded in generated SQL are
// escaped against the dialect's quoting rules; substring search keywords
// travel as bound parameters, never interpolated.
type SchemaProfile interface {
	// Name identifies the profile for configuration and logs.
	Name() string

	// DriverName is the database/sql driver this profile queries through.
	DriverName() string

	// DSN renders the connection string for the driver.
	DSN(cfg DatabaseConfig) string

	// TagSearchSQL returns the tag substring search statement with one
	// bound parameter for the LIKE pattern.
	TagSearchSQL(limit int) string

	// AvailableTagsSQL returns the statement listing all distinct tags in
	// a history table.
	AvailableTagsSQL(table string) string

	// ListTablesSQL returns the statement enumerating base tables.
	ListTablesSQL() string

	// HistoryQuerySQL returns the history range query. tagFilter is a
	// fragment from BuildTagFilter, possibly empty.
	HistoryQuerySQL(table, startTime, endTime, tagFilter string) string

	// BuildTagFilter returns an inclusion-list fragment for the given
	// tags (empty string for none), with each literal quote-escaped.
	BuildTagFilter(tags []string) string

	// MapRow maps one result row into a HistoryRecord.
	MapRow(row RowScanner) (models.HistoryRecord, error)

	// Column name accessors for the history table.
	TagColumn() string
	TimeColumn() string
	ValueColumn() string
	QualityColumn() string
}

// escapeLiteral doubles single quotes for embedding in a string literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// escapeBracketIdent doubles closing brackets for a [bracketed]
// SQL Server identifier.
func escapeBracketIdent(s string) string {
	return strings.ReplaceAll(s, "]", "]]")
}

// escapeQuoteIdent doubles double quotes for a "quoted" standard SQL
// identifier.
func escapeQuoteIdent(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// baseProfile carries the column names and the shared tag-filter and
// row-mapping logic; vendor profiles embed it.
type baseProfile struct {
	tagCol  string
	timeCol string
	valCol  string
	qualCol string
}

func (b baseProfile) TagColumn() string     { return b.tagCol }
func (b baseProfile) TimeColumn() string    { return b.timeCol }
func (b baseProfile) ValueColumn() string   { return b.valCol }
func (b baseProfile) QualityColumn() string { return b.qualCol }

func (b baseProfile) BuildTagFilter(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = "'" + escapeLiteral(t) + "'"
	}
	return fmt.Sprintf("AND %s IN (%s)", b.tagCol, strings.Join(quoted, ", "))
}

func (b baseProfile) MapRow(row RowScanner) (models.HistoryRecord, error) {
	var (
		ts      time.Time
		name    string
		value   float64
		quality string
	)
	if err := row.Scan(&ts, &name, &value, &quality); err != nil {
		return models.HistoryRecord{}, apperr.Wrap(apperr.KindQuery, err, "row mapping failed")
	}
	return models.HistoryRecord{
		DateTime:   ts.Format("2006-01-02T15:04:05.000"),
		TagName:    strings.TrimSpace(name),
		TagVal:     value,
		TagQuality: strings.TrimSpace(quality),
	}, nil
}
