// Package processing implements the pure time-series transformation
// pipeline: 3-sigma outlier rejection, epoch-aligned time-bucket
// resampling, centered moving-average smoothing and stride downsampling.
//
// Two interchangeable engines implement stages 1-3: a straightforward
// row-wise engine and a columnar engine for large inputs. Both produce
// equivalent results for the same input and configuration; the pipeline
// orchestrator picks between them and falls back from columnar to
// row-wise on any failure.
package processing

import (
	"math"
	"sort"

	"github.com/industryvis/historian/internal/models"
)

// ProcessRowWise runs stages 1-3 per series using the record-at-a-time
// engine. The result is concatenated across series and sorted by
// timestamp ascending (stable for ties).
func ProcessRowWise(records []models.HistoryRecord, cfg *models.ProcessingConfig) []models.HistoryRecord {
	if len(records) == 0 || cfg == nil {
		return records
	}

	result := make([]models.HistoryRecord, 0, len(records))
	for _, group := range groupByTag(records) {
		result = append(result, processSeries(group, cfg)...)
	}

	sortByTime(result)
	return result
}

// processSeries applies the enabled stages, in fixed order, to one
// series.
func processSeries(records []models.HistoryRecord, cfg *models.ProcessingConfig) []models.HistoryRecord {
	if cfg.OutlierRemoval.Enabled {
		records = removeOutliers(records)
	}
	if cfg.Resample.Enabled && cfg.Resample.IntervalSeconds > 0 {
		records = resample(records, cfg.Resample.IntervalSeconds)
	}
	if cfg.Smoothing.Enabled && cfg.Smoothing.Window >= 2 {
		records = smooth(records, cfg.Smoothing.Window)
	}
	return records
}

// removeOutliers drops points outside mean±3σ (population standard
// deviation). A single, non-iterative pass; series with fewer than three
// points pass through unchanged.
func removeOutliers(records []models.HistoryRecord) []models.HistoryRecord {
	if len(records) < 3 {
		return records
	}

	n := float64(len(records))
	sum := 0.0
	for _, r := range records {
		sum += r.TagVal
	}
	mean := sum / n

	variance := 0.0
	for _, r := range records {
		d := r.TagVal - mean
		variance += d * d
	}
	variance /= n
	stdDev := math.Sqrt(variance)

	lower := mean - 3*stdDev
	upper := mean + 3*stdDev

	result := make([]models.HistoryRecord, 0, len(records))
	for _, r := range records {
		if r.TagVal >= lower && r.TagVal <= upper {
			result = append(result, r)
		}
	}
	return result
}

// resample collapses points into fixed-width, epoch-aligned windows of
// intervalSeconds. Each window becomes one point: the arithmetic mean of
// its members, stamped at the window start; tag name and quality come
// from the chronologically earliest member. Points with unparseable
// timestamps are dropped.
func resample(records []models.HistoryRecord, intervalSeconds int) []models.HistoryRecord {
	if len(records) == 0 {
		return records
	}

	intervalMs := int64(intervalSeconds) * 1000

	type window struct {
		sum     float64
		count   int
		firstTs int64
		tagName string
		quality string
	}
	windows := make(map[int64]*window)

	for _, r := range records {
		ts, ok := parseTimestampMs(r.DateTime)
		if !ok {
			continue
		}
		key := ts / intervalMs * intervalMs
		w, exists := windows[key]
		if !exists {
			windows[key] = &window{
				sum:     r.TagVal,
				count:   1,
				firstTs: ts,
				tagName: r.TagName,
				quality: r.TagQuality,
			}
			continue
		}
		w.sum += r.TagVal
		w.count++
		if ts < w.firstTs {
			w.firstTs = ts
			w.tagName = r.TagName
			w.quality = r.TagQuality
		}
	}

	result := make([]models.HistoryRecord, 0, len(windows))
	for key, w := range windows {
		result = append(result, models.HistoryRecord{
			DateTime:   formatTimestampMs(key),
			TagName:    w.tagName,
			TagVal:     w.sum / float64(w.count),
			TagQuality: w.quality,
		})
	}

	sortByTime(result)
	return result
}

// smooth applies a centered moving average with half-window window/2 on
// each side, clamped at the sequence bounds (edge windows are shorter).
// Only values change; timestamps, tag names and qualities are preserved.
// Series shorter than the window pass through unchanged.
func smooth(records []models.HistoryRecord, window int) []models.HistoryRecord {
	if window < 2 || len(records) < window {
		return records
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.TagVal
	}

	half := window / 2
	result := make([]models.HistoryRecord, len(records))
	for i := range records {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(values) {
			end = len(values)
		}

		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}

		result[i] = records[i]
		result[i].TagVal = sum / float64(end-start)
	}
	return result
}

// Downsample caps each series at maxPointsPerSeries by stride selection:
// with N = count/cap, every Nth point is kept. Lossy by design, biased
// toward uniform coverage rather than feature preservation. Series at or
// below the cap pass through unchanged. Output is sorted by timestamp.
func Downsample(records []models.HistoryRecord, maxPointsPerSeries int) []models.HistoryRecord {
	if len(records) == 0 || maxPointsPerSeries <= 0 {
		return records
	}

	result := make([]models.HistoryRecord, 0, len(records))
	for _, group := range groupByTag(records) {
		if len(group) <= maxPointsPerSeries {
			result = append(result, group...)
			continue
		}
		step := len(group) / maxPointsPerSeries
		for i, r := range group {
			if i%step == 0 {
				result = append(result, r)
			}
		}
	}

	sortByTime(result)
	return result
}

// groupByTag partitions records per series, preserving input order
// within each group. Groups are returned in sorted tag order so callers
// iterate deterministically.
func groupByTag(records []models.HistoryRecord) [][]models.HistoryRecord {
	byTag := make(map[string][]models.HistoryRecord)
	order := make([]string, 0)
	for _, r := range records {
		if _, ok := byTag[r.TagName]; !ok {
			order = append(order, r.TagName)
		}
		byTag[r.TagName] = append(byTag[r.TagName], r)
	}
	sort.Strings(order)

	groups := make([][]models.HistoryRecord, 0, len(order))
	for _, tag := range order {
		groups = append(groups, byTag[tag])
	}
	return groups
}

// sortByTime sorts records by the DateTime string; the fixed-width
// layout makes lexicographic order chronological. Stable for ties.
func sortByTime(records []models.HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DateTime < records[j].DateTime
	})
}
