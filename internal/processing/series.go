package processing

import (
	"sort"

	"github.com/industryvis/historian/internal/models"
)

// RecordsToSeries regroups a flat, already-processed record sequence
// into the per-series shape consumed by the visualization layer: one
// entry per tag, sorted by tag name, each holding [timestampMs, value]
// pairs sorted by timestamp. A pure, stateless projection. Records with
// unparseable timestamps map to timestamp zero rather than being
// dropped.
func RecordsToSeries(records []models.HistoryRecord) []models.ChartSeriesData {
	byTag := make(map[string][][2]float64)
	for _, r := range records {
		ms, _ := parseTimestampMs(r.DateTime)
		byTag[r.TagName] = append(byTag[r.TagName], [2]float64{float64(ms), r.TagVal})
	}

	series := make([]models.ChartSeriesData, 0, len(byTag))
	for tag, data := range byTag {
		sort.SliceStable(data, func(i, j int) bool { return data[i][0] < data[j][0] })
		series = append(series, models.ChartSeriesData{TagName: tag, Data: data})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].TagName < series[j].TagName })
	return series
}
