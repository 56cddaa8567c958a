package models

// HistoryRecord represents a single tag history data point as read from
// the historian store or produced by the processing pipeline.
//
// DateTime uses ISO-8601 with millisecond precision
// ("2006-01-02T15:04:05.000"). Records are value objects; pipeline stages
// produce new records rather than mutating existing ones.
type HistoryRecord struct {
	DateTime   string  `json:"dateTime"`
	TagName    string  `json:"tagName"`
	TagVal     float64 `json:"tagVal"`
	TagQuality string  `json:"tagQuality"`
}

// QueryParams describes a history query as received from the caller.
// Limit and Offset of zero mean "not set".
type QueryParams struct {
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Tags      []string `json:"tags,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// QueryResult is the flat result shape: the (possibly paginated) records
// plus the total record count before pagination.
type QueryResult struct {
	Records []HistoryRecord `json:"records"`
	Total   int             `json:"total"`
}

// ChartSeriesData is one series in the pre-grouped result shape consumed
// by the visualization layer. Data points are [timestampMs, value] pairs
// sorted by timestamp.
type ChartSeriesData struct {
	TagName string       `json:"tagName"`
	Data    [][2]float64 `json:"data"`
}

// QueryResultV2 is the pre-grouped result shape with cache and timing
// metadata.
type QueryResultV2 struct {
	Series         []ChartSeriesData `json:"series"`
	TotalRaw       int               `json:"totalRaw"`
	TotalProcessed int               `json:"totalProcessed"`
	CacheHit       bool              `json:"cacheHit"`
	QueryTimeMs    int64             `json:"queryTimeMs"`
}

// TableInfo identifies one table in the backing store.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// ConnectionTestResult reports the outcome of a connection probe.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
