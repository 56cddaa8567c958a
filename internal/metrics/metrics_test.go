package metrics

import (
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industryvis/historian/internal/cache"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestQueryObserverCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewQueryObserver(reg)

	o.Observe(10*time.Millisecond, true)
	o.Observe(20*time.Millisecond, true)
	o.Observe(30*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.total.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.total.WithLabelValues("false")))
}

func TestCacheCollectorExportsStats(t *testing.T) {
	qc := cache.New(cache.Config{MaxEntries: 10, TTL: time.Minute}, quietLogger())
	key := cache.NewKey("T", "s", "e", nil, nil)
	qc.Get(key)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCacheCollector(qc)))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, mf := range families {
		byName[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue() + mf.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 1.0, byName["historian_cache_misses_total"])
	assert.Equal(t, 0.0, byName["historian_cache_hits_total"])
	assert.Equal(t, 0.0, byName["historian_cache_entries"])
}
