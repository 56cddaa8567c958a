package processing

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industryvis/historian/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestProcessQueryResultDownsamplesWithoutConfig(t *testing.T) {
	var records []models.HistoryRecord
	for i := 0; i < 20000; i++ {
		records = append(records, rec(tsAt(testBase, time.Duration(i)*time.Second), "Temp", float64(i)))
	}

	result := ProcessQueryResult(records, nil, DefaultOptions(), quietLogger())
	assert.Len(t, result, 5000)
}

func TestProcessQueryResultSmallInputUsesRowWise(t *testing.T) {
	records := []models.HistoryRecord{
		rec(tsAt(testBase, 0), "Temp", 1),
		rec("garbage", "Temp", 2),
	}

	// Below the columnar threshold the row-wise engine runs and
	// tolerates the unparseable timestamp.
	result := ProcessQueryResult(records, outlierOnly(), DefaultOptions(), quietLogger())
	assert.Len(t, result, 2)
}

func TestProcessQueryResultColumnarFallback(t *testing.T) {
	var records []models.HistoryRecord
	for i := 0; i < 1500; i++ {
		records = append(records, rec(tsAt(testBase, time.Duration(i)*time.Second), "Temp", 10))
	}
	records = append(records, rec("garbage", "Temp", 10))

	// Above the threshold the columnar engine refuses the bad
	// timestamp; the pipeline must degrade to row-wise, not fail.
	result := ProcessQueryResult(records, outlierOnly(), DefaultOptions(), quietLogger())
	assert.Len(t, result, 1501)
}

func TestProcessQueryResultLargeInputMatchesRowWise(t *testing.T) {
	cfg := cfgPtr(models.DefaultProcessingConfig().
		WithOutlierRemoval("3sigma").
		WithResample(60, "mean"))

	records := syntheticSeries(1200, "Flow", "Pressure")

	viaPipeline := ProcessQueryResult(records, cfg, DefaultOptions(), quietLogger())
	viaRowWise := Downsample(ProcessRowWise(records, cfg), DefaultOptions().MaxPointsPerSeries)

	require.Equal(t, len(viaRowWise), len(viaPipeline))
	for i := range viaRowWise {
		assert.Equal(t, viaRowWise[i].DateTime, viaPipeline[i].DateTime)
		assert.InDelta(t, viaRowWise[i].TagVal, viaPipeline[i].TagVal, 1e-9)
	}
}

func TestProcessQueryResultAllStagesDisabledSkipsEngines(t *testing.T) {
	cfg := models.DefaultProcessingConfig()

	records := []models.HistoryRecord{
		rec(tsAt(testBase, time.Second), "Temp", 2),
		rec(tsAt(testBase, 0), "Temp", 1),
	}

	result := ProcessQueryResult(records, cfgPtr(cfg), DefaultOptions(), quietLogger())

	// No stage enabled: records pass through the downsampler only,
	// which sorts but does not alter values.
	require.Len(t, result, 2)
	assert.Equal(t, 1.0, result[0].TagVal)
	assert.Equal(t, 2.0, result[1].TagVal)
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{}.normalized()
	assert.Equal(t, DefaultOptions(), opts)

	custom := Options{ColumnarThreshold: 10, MaxPointsPerSeries: 100}.normalized()
	assert.Equal(t, 10, custom.ColumnarThreshold)
	assert.Equal(t, 100, custom.MaxPointsPerSeries)
}
