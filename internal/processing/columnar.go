package processing

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/industryvis/historian/internal/apperr"
	"github.com/industryvis/historian/internal/models"
)

// frame is a struct-of-arrays view over a record set: parallel columns
// for timestamp, tag, value and quality, sorted by (tag, timestamp).
// Stages operate over all series at once using the precomputed group
// index ranges.
type frame struct {
	ts   []int64
	tag  []string
	val  []float64
	qual []string

	// groups maps each tag to the half-open [start, end) row range
	// holding that series; tags lists them in sorted order.
	groups map[string][2]int
	tags   []string
}

// newFrame converts records into columnar form. Any unparseable
// timestamp is an error: the columnar path refuses rather than silently
// dropping, and the caller falls back to the row-wise engine.
func newFrame(records []models.HistoryRecord) (*frame, error) {
	n := len(records)
	f := &frame{
		ts:   make([]int64, n),
		tag:  make([]string, n),
		val:  make([]float64, n),
		qual: make([]string, n),
	}

	idx := make([]int, n)
	for i, r := range records {
		ms, ok := parseTimestampMs(r.DateTime)
		if !ok {
			return nil, apperr.New(apperr.KindProcessing, "unparseable timestamp %q", r.DateTime)
		}
		f.ts[i] = ms
		f.tag[i] = r.TagName
		f.val[i] = r.TagVal
		f.qual[i] = r.TagQuality
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		if f.tag[idx[a]] != f.tag[idx[b]] {
			return f.tag[idx[a]] < f.tag[idx[b]]
		}
		return f.ts[idx[a]] < f.ts[idx[b]]
	})
	f.permute(idx)
	f.reindex()
	return f, nil
}

// permute reorders all columns by the given index vector.
func (f *frame) permute(idx []int) {
	ts := make([]int64, len(idx))
	tag := make([]string, len(idx))
	val := make([]float64, len(idx))
	qual := make([]string, len(idx))
	for i, j := range idx {
		ts[i] = f.ts[j]
		tag[i] = f.tag[j]
		val[i] = f.val[j]
		qual[i] = f.qual[j]
	}
	f.ts, f.tag, f.val, f.qual = ts, tag, val, qual
}

// reindex rebuilds the per-tag row ranges. Rows must already be grouped
// by tag.
func (f *frame) reindex() {
	f.groups = make(map[string][2]int)
	f.tags = f.tags[:0]
	for i := 0; i < len(f.tag); {
		j := i
		for j < len(f.tag) && f.tag[j] == f.tag[i] {
			j++
		}
		f.groups[f.tag[i]] = [2]int{i, j}
		f.tags = append(f.tags, f.tag[i])
		i = j
	}
}

// filterRows keeps only the rows whose index appears in keep (ascending)
// and rebuilds the group ranges.
func (f *frame) filterRows(keep []int) {
	f.permuteInPlaceSubset(keep)
	f.reindex()
}

func (f *frame) permuteInPlaceSubset(keep []int) {
	for i, j := range keep {
		f.ts[i] = f.ts[j]
		f.tag[i] = f.tag[j]
		f.val[i] = f.val[j]
		f.qual[i] = f.qual[j]
	}
	f.ts = f.ts[:len(keep)]
	f.tag = f.tag[:len(keep)]
	f.val = f.val[:len(keep)]
	f.qual = f.qual[:len(keep)]
}

func (f *frame) records() []models.HistoryRecord {
	out := make([]models.HistoryRecord, len(f.ts))
	for i := range f.ts {
		out[i] = models.HistoryRecord{
			DateTime:   formatTimestampMs(f.ts[i]),
			TagName:    f.tag[i],
			TagVal:     f.val[i],
			TagQuality: f.qual[i],
		}
	}
	return out
}

// ProcessColumnar runs stages 1-3 over a columnar view of the whole
// record set, one grouped pass per stage. It returns an error instead of
// best-effort output whenever the input cannot be represented
// columnar-wise; the pipeline falls back to the row-wise engine in that
// case. For identical, parseable input both engines produce equivalent
// results.
func ProcessColumnar(records []models.HistoryRecord, cfg *models.ProcessingConfig) (result []models.HistoryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperr.New(apperr.KindProcessing, "columnar engine panic: %v", r)
		}
	}()

	if len(records) == 0 || cfg == nil {
		return records, nil
	}

	f, err := newFrame(records)
	if err != nil {
		return nil, err
	}

	if cfg.OutlierRemoval.Enabled {
		columnarRemoveOutliers(f)
	}
	if cfg.Resample.Enabled && cfg.Resample.IntervalSeconds > 0 {
		columnarResample(f, cfg.Resample.IntervalSeconds)
	}
	if cfg.Smoothing.Enabled && cfg.Smoothing.Window >= 2 {
		columnarSmooth(f, cfg.Smoothing.Window)
	}

	out := f.records()
	sortByTime(out)
	return out, nil
}

// columnarRemoveOutliers applies the 3-sigma rule per group using
// population statistics over each group's value slice. Groups with fewer
// than three rows pass through.
func columnarRemoveOutliers(f *frame) {
	keep := make([]int, 0, len(f.val))
	for _, tag := range f.tags {
		r := f.groups[tag]
		vals := f.val[r[0]:r[1]]
		if len(vals) < 3 {
			for i := r[0]; i < r[1]; i++ {
				keep = append(keep, i)
			}
			continue
		}

		mean, stdDev := stat.PopMeanStdDev(vals, nil)
		lower := mean - 3*stdDev
		upper := mean + 3*stdDev
		for i := r[0]; i < r[1]; i++ {
			if f.val[i] >= lower && f.val[i] <= upper {
				keep = append(keep, i)
			}
		}
	}
	f.filterRows(keep)
}

// columnarResample buckets every row into epoch-aligned windows in a
// single pass over the frame, then collapses each (tag, window) bucket to
// its mean. Rows are time-sorted within groups, so the first row seen per
// bucket is the chronologically earliest and supplies the quality.
func columnarResample(f *frame, intervalSeconds int) {
	intervalMs := int64(intervalSeconds) * 1000

	type bucket struct {
		vals    []float64
		quality string
	}
	type bucketKey struct {
		tag string
		win int64
	}

	buckets := make(map[bucketKey]*bucket)
	order := make([]bucketKey, 0)
	for i := range f.ts {
		k := bucketKey{tag: f.tag[i], win: f.ts[i] / intervalMs * intervalMs}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{quality: f.qual[i]}
			buckets[k] = b
			order = append(order, k)
		}
		b.vals = append(b.vals, f.val[i])
	}

	sort.Slice(order, func(a, b int) bool {
		if order[a].tag != order[b].tag {
			return order[a].tag < order[b].tag
		}
		return order[a].win < order[b].win
	})

	ts := make([]int64, 0, len(order))
	tag := make([]string, 0, len(order))
	val := make([]float64, 0, len(order))
	qual := make([]string, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		ts = append(ts, k.win)
		tag = append(tag, k.tag)
		val = append(val, stat.Mean(b.vals, nil))
		qual = append(qual, b.quality)
	}

	f.ts, f.tag, f.val, f.qual = ts, tag, val, qual
	f.reindex()
}

// columnarSmooth replaces each group's value column with its centered
// rolling mean, window clamped at the group bounds. Groups shorter than
// the window are untouched.
func columnarSmooth(f *frame, window int) {
	half := window / 2
	smoothed := make([]float64, len(f.val))
	copy(smoothed, f.val)

	for _, tag := range f.tags {
		r := f.groups[tag]
		n := r[1] - r[0]
		if n < window {
			continue
		}
		vals := f.val[r[0]:r[1]]
		for i := 0; i < n; i++ {
			start := i - half
			if start < 0 {
				start = 0
			}
			end := i + half + 1
			if end > n {
				end = n
			}
			smoothed[r[0]+i] = stat.Mean(vals[start:end], nil)
		}
	}
	f.val = smoothed
}
