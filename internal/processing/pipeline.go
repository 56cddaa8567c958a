package processing

import (
	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/models"
)

// Options tunes the pipeline orchestrator.
type Options struct {
	// ColumnarThreshold is the record count above which the columnar
	// engine is preferred for throughput.
	ColumnarThreshold int
	// MaxPointsPerSeries caps each series after processing; downsampling
	// always runs regardless of per-stage toggles.
	MaxPointsPerSeries int
}

// DefaultOptions matches the historical tuning: columnar above 1000
// records, 5000 points per series.
func DefaultOptions() Options {
	return Options{ColumnarThreshold: 1000, MaxPointsPerSeries: 5000}
}

func (o Options) normalized() Options {
	if o.ColumnarThreshold <= 0 {
		o.ColumnarThreshold = DefaultOptions().ColumnarThreshold
	}
	if o.MaxPointsPerSeries <= 0 {
		o.MaxPointsPerSeries = DefaultOptions().MaxPointsPerSeries
	}
	return o
}

// ProcessQueryResult runs the full pipeline over a query result. With
// any stage enabled, stages 1-3 run per series through one of the two
// engines: the columnar engine above the threshold, the row-wise
// engine otherwise. A columnar failure degrades to the row-wise engine
// with a logged warning and never fails the request. Downsampling always
// runs last.
func ProcessQueryResult(
	records []models.HistoryRecord,
	cfg *models.ProcessingConfig,
	opts Options,
	logger *logrus.Logger,
) []models.HistoryRecord {
	opts = opts.normalized()
	log := logger.WithField("component", "processing")

	if cfg != nil && cfg.HasAnyEnabled() {
		in := len(records)
		if in > opts.ColumnarThreshold {
			processed, err := ProcessColumnar(records, cfg)
			if err != nil {
				log.WithField("error", err).Warn("columnar engine failed, falling back to row-wise")
				records = ProcessRowWise(records, cfg)
			} else {
				log.WithFields(logrus.Fields{
					"in":  in,
					"out": len(processed),
				}).Debug("columnar processing complete")
				records = processed
			}
		} else {
			records = ProcessRowWise(records, cfg)
		}
	}

	return Downsample(records, opts.MaxPointsPerSeries)
}
