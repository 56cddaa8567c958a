// Package metrics exposes Prometheus instrumentation for the query
// path, the result cache and the connection pool.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/industryvis/historian/internal/cache"
	"github.com/industryvis/historian/internal/database"
)

// QueryObserver records query latencies partitioned by cache outcome.
type QueryObserver struct {
	durations *prometheus.HistogramVec
	total     *prometheus.CounterVec
}

// NewQueryObserver creates the observer and registers its metrics with
// reg.
func NewQueryObserver(reg prometheus.Registerer) *QueryObserver {
	o := &QueryObserver{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "historian_query_duration_seconds",
			Help:    "History query latency partitioned by cache outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cache_hit"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "historian_queries_total",
			Help: "Total history queries partitioned by cache outcome.",
		}, []string{"cache_hit"}),
	}
	reg.MustRegister(o.durations, o.total)
	return o
}

// Observe records one completed query.
func (o *QueryObserver) Observe(d time.Duration, cacheHit bool) {
	hit := strconv.FormatBool(cacheHit)
	o.durations.WithLabelValues(hit).Observe(d.Seconds())
	o.total.WithLabelValues(hit).Inc()
}

// CacheCollector exports cache statistics on scrape.
type CacheCollector struct {
	cache *cache.QueryCache

	hits    *prometheus.Desc
	misses  *prometheus.Desc
	entries *prometheus.Desc
	memory  *prometheus.Desc
}

var _ prometheus.Collector = (*CacheCollector)(nil)

// NewCacheCollector creates a collector over qc.
func NewCacheCollector(qc *cache.QueryCache) *CacheCollector {
	return &CacheCollector{
		cache: qc,
		hits: prometheus.NewDesc(
			"historian_cache_hits_total",
			"Cache lookups served from memory.", nil, nil),
		misses: prometheus.NewDesc(
			"historian_cache_misses_total",
			"Cache lookups that fell through to the store.", nil, nil),
		entries: prometheus.NewDesc(
			"historian_cache_entries",
			"Entries currently cached.", nil, nil),
		memory: prometheus.NewDesc(
			"historian_cache_memory_bytes",
			"Estimated memory held by cached records.", nil, nil),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.entries
	ch <- c.memory
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(stats.EstimatedMemoryBytes))
}

// PoolCollector exports connection pool state on scrape.
type PoolCollector struct {
	pool *database.Pool

	open   *prometheus.Desc
	idle   *prometheus.Desc
	active *prometheus.Desc
	max    *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over pool.
func NewPoolCollector(pool *database.Pool) *PoolCollector {
	return &PoolCollector{
		pool: pool,
		open: prometheus.NewDesc(
			"historian_pool_connections",
			"Connections currently open.", nil, nil),
		idle: prometheus.NewDesc(
			"historian_pool_idle_connections",
			"Connections sitting idle in the pool.", nil, nil),
		active: prometheus.NewDesc(
			"historian_pool_active_connections",
			"Connections checked out by callers.", nil, nil),
		max: prometheus.NewDesc(
			"historian_pool_max_connections",
			"Configured pool capacity.", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.idle
	ch <- c.active
	ch <- c.max
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	state := c.pool.State()
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(state.Connections))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(state.IdleConnections))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(state.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(state.MaxSize))
}
