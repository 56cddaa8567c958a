package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industryvis/historian/internal/apperr"
)

var (
	_ SchemaProfile = (*DefaultProfile)(nil)
	_ SchemaProfile = (*TimescaleProfile)(nil)
)

func TestBuildTagFilter(t *testing.T) {
	p := NewDefaultProfile()

	assert.Equal(t, "", p.BuildTagFilter(nil))
	assert.Equal(t, "AND TagName IN ('A')", p.BuildTagFilter([]string{"A"}))
	assert.Equal(t, "AND TagName IN ('A', 'B')", p.BuildTagFilter([]string{"A", "B"}))
}

func TestBuildTagFilterEscapesQuotes(t *testing.T) {
	p := NewDefaultProfile()

	filter := p.BuildTagFilter([]string{"O'Brien"})
	assert.Equal(t, "AND TagName IN ('O''Brien')", filter)
}

func TestDefaultHistoryQuerySQL(t *testing.T) {
	p := NewDefaultProfile()

	sql := p.HistoryQuerySQL("TagHistory", "2024-01-01T00:00:00", "2024-01-02T00:00:00", "AND TagName IN ('A')")

	assert.Contains(t, sql, "FROM [TagHistory] WITH (NOLOCK)")
	assert.Contains(t, sql, "BETWEEN '2024-01-01T00:00:00' AND '2024-01-02T00:00:00'")
	assert.Contains(t, sql, "AND TagName IN ('A')")
	assert.Contains(t, sql, "ORDER BY DateTime")
}

func TestDefaultHistoryQuerySQLEscapesIdentifierAndLiterals(t *testing.T) {
	p := NewDefaultProfile()

	sql := p.HistoryQuerySQL("bad]table", "x' OR '1'='1", "e", "")

	assert.Contains(t, sql, "[bad]]table]")
	assert.Contains(t, sql, "'x'' OR ''1''=''1'")
}

func TestDefaultTagSearchSQLUsesBoundParameter(t *testing.T) {
	p := NewDefaultProfile()

	sql := p.TagSearchSQL(50)
	assert.Contains(t, sql, "TOP 50")
	assert.Contains(t, sql, "@p1")
	assert.NotContains(t, sql, "%")
}

func TestDefaultDSN(t *testing.T) {
	p := NewDefaultProfile()

	dsn := p.DSN(DatabaseConfig{
		Server:   "db.example.com",
		Port:     1433,
		Database: "Runtime",
		Username: "reader",
		Password: "p@ss",
	})

	assert.Contains(t, dsn, "sqlserver://")
	assert.Contains(t, dsn, "db.example.com:1433")
	assert.Contains(t, dsn, "database=Runtime")
}

func TestTimescaleSQL(t *testing.T) {
	p := NewTimescaleProfile()

	search := p.TagSearchSQL(25)
	assert.Contains(t, search, "$1")
	assert.Contains(t, search, "LIMIT 25")

	sql := p.HistoryQuerySQL("history", "s", "e", "")
	assert.Contains(t, sql, `FROM "history"`)
	assert.Contains(t, sql, `ORDER BY "time"`)

	assert.Contains(t, p.HistoryQuerySQL(`bad"table`, "s", "e", ""), `"bad""table"`)
}

func TestTimescaleDSN(t *testing.T) {
	p := NewTimescaleProfile()

	dsn := p.DSN(DatabaseConfig{
		Server:   "ts.example.com",
		Port:     5432,
		Database: "historian",
		Username: "reader",
		Password: "secret",
	})

	assert.Contains(t, dsn, "host=ts.example.com")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=historian")
}

type fakeScanner struct {
	ts      time.Time
	name    string
	value   float64
	quality string
}

func (s fakeScanner) Scan(dest ...interface{}) error {
	*dest[0].(*time.Time) = s.ts
	*dest[1].(*string) = s.name
	*dest[2].(*float64) = s.value
	*dest[3].(*string) = s.quality
	return nil
}

func TestMapRowTrimsAndFormats(t *testing.T) {
	p := NewDefaultProfile()

	row := fakeScanner{
		ts:      time.Date(2024, 1, 1, 12, 30, 45, 500_000_000, time.UTC),
		name:    "Temp  ",
		value:   42.5,
		quality: " 192 ",
	}

	record, err := p.MapRow(row)

	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T12:30:45.500", record.DateTime)
	assert.Equal(t, "Temp", record.TagName)
	assert.Equal(t, 42.5, record.TagVal)
	assert.Equal(t, "192", record.TagQuality)
}

func TestResolveProfile(t *testing.T) {
	p, err := ResolveProfile("")
	require.NoError(t, err)
	assert.Equal(t, "default", p.Name())

	p, err = ResolveProfile("timescale")
	require.NoError(t, err)
	assert.Equal(t, "timescale", p.Name())

	_, err = ResolveProfile("oracle")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
	assert.Contains(t, err.Error(), "oracle")
	assert.Contains(t, err.Error(), "timescale")
}
