package database

import (
	"fmt"
	"net/url"
)

// DefaultProfile targets the stock historian vendor schema on
// SQL Server: tag catalog in [TagDataBase] with a TagName column,
// history tables with DateTime/TagName/TagVal/TagQuality columns.
type DefaultProfile struct {
	baseProfile
}

// NewDefaultProfile creates the default profile.
func NewDefaultProfile() *DefaultProfile {
	return &DefaultProfile{baseProfile: baseProfile{
		tagCol:  "TagName",
		timeCol: "DateTime",
		valCol:  "TagVal",
		qualCol: "TagQuality",
	}}
}

func (p *DefaultProfile) Name() string       { return "default" }
func (p *DefaultProfile) DriverName() string { return "sqlserver" }

func (p *DefaultProfile) DSN(cfg DatabaseConfig) string {
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		RawQuery: "database=" + url.QueryEscape(cfg.Database),
	}
	return u.String()
}

func (p *DefaultProfile) TagSearchSQL(limit int) string {
	return fmt.Sprintf(
		"SELECT DISTINCT TOP %d TagName FROM [TagDataBase] WHERE TagName LIKE @p1 ORDER BY TagName",
		limit)
}

func (p *DefaultProfile) AvailableTagsSQL(table string) string {
	return fmt.Sprintf(
		"SELECT DISTINCT TagName FROM [%s] ORDER BY TagName",
		escapeBracketIdent(table))
}

func (p *DefaultProfile) ListTablesSQL() string {
	return "SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'"
}

// HistoryQuerySQL renders the range query. NOLOCK keeps long chart
// queries from stalling the historian's writer.
func (p *DefaultProfile) HistoryQuerySQL(table, startTime, endTime, tagFilter string) string {
	return fmt.Sprintf(
		`SELECT DateTime, TagName, TagVal, TagQuality FROM [%s] WITH (NOLOCK) WHERE DateTime BETWEEN '%s' AND '%s' %s ORDER BY DateTime`,
		escapeBracketIdent(table),
		escapeLiteral(startTime),
		escapeLiteral(endTime),
		tagFilter)
}
