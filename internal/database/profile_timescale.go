package database

import "fmt"

// TimescaleProfile targets a TimescaleDB/Postgres historian layout: a
// tag_catalog table and history hypertables with
// time/tag_name/value/quality columns.
type TimescaleProfile struct {
	baseProfile
}

// NewTimescaleProfile creates the timescale profile.
func NewTimescaleProfile() *TimescaleProfile {
	return &TimescaleProfile{baseProfile: baseProfile{
		tagCol:  "tag_name",
		timeCol: "time",
		valCol:  "value",
		qualCol: "quality",
	}}
}

func (p *TimescaleProfile) Name() string       { return "timescale" }
func (p *TimescaleProfile) DriverName() string { return "postgres" }

func (p *TimescaleProfile) DSN(cfg DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Server, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

func (p *TimescaleProfile) TagSearchSQL(limit int) string {
	return fmt.Sprintf(
		"SELECT DISTINCT tag_name FROM tag_catalog WHERE tag_name LIKE $1 ORDER BY tag_name LIMIT %d",
		limit)
}

func (p *TimescaleProfile) AvailableTagsSQL(table string) string {
	return fmt.Sprintf(
		`SELECT DISTINCT tag_name FROM "%s" ORDER BY tag_name`,
		escapeQuoteIdent(table))
}

func (p *TimescaleProfile) ListTablesSQL() string {
	return "SELECT table_schema, table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema NOT IN ('pg_catalog', 'information_schema')"
}

func (p *TimescaleProfile) HistoryQuerySQL(table, startTime, endTime, tagFilter string) string {
	return fmt.Sprintf(
		`SELECT "time", tag_name, value, quality FROM "%s" WHERE "time" BETWEEN '%s' AND '%s' %s ORDER BY "time"`,
		escapeQuoteIdent(table),
		escapeLiteral(startTime),
		escapeLiteral(endTime),
		tagFilter)
}
