// Package cache implements the fingerprinted query-result cache: a
// bounded LRU with per-entry TTL, hit/miss statistics, a periodic
// eviction sweeper and a warm-up runner.
//
// The LRU core is hashicorp/golang-lru; TTL bookkeeping and statistics
// are layered on top under a single mutex so that Get/Put/Clear and the
// sweep each observe a consistent snapshot.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/models"
)

// bytesPerRecord is the coarse per-point memory heuristic used for the
// estimated memory statistic.
const bytesPerRecord = 100

// Config sizes the query cache.
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultConfig returns the sizing used when nothing is configured:
// 200 entries, 30 minute TTL.
func DefaultConfig() Config {
	return Config{MaxEntries: 200, TTL: 30 * time.Minute}
}

type entry struct {
	records   []models.HistoryRecord
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats is the read-only statistics snapshot exposed for operational
// visibility.
type Stats struct {
	Hits                 uint64  `json:"hits"`
	Misses               uint64  `json:"misses"`
	HitRate              float64 `json:"hitRate"`
	Entries              int     `json:"entries"`
	MaxEntries           int     `json:"maxEntries"`
	EstimatedMemoryBytes int     `json:"estimatedMemoryBytes"`
}

// QueryCache is a thread-safe LRU+TTL cache of processed query results.
// An expired entry is evicted as a side effect of the Get that discovers
// it, or by the periodic sweep.
type QueryCache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	cfg    Config
	hits   uint64
	misses uint64
	logger *logrus.Entry
}

// New creates a query cache. A non-positive MaxEntries falls back to the
// default sizing.
func New(cfg Config, logger *logrus.Logger) *QueryCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	// lru.New only fails on a non-positive size, which is ruled out above.
	l, _ := lru.New(cfg.MaxEntries)

	return &QueryCache{
		lru:    l,
		cfg:    cfg,
		logger: logger.WithField("component", "cache"),
	}
}

// Get returns a copy of the cached payload for key. Expired entries are
// removed and counted as misses. A hit refreshes the entry's LRU
// recency.
func (c *QueryCache) Get(key Key) ([]models.HistoryRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		c.logger.WithField("key", key.String()).Debug("cache miss")
		return nil, false
	}

	e := v.(*entry)
	if e.expired(time.Now()) {
		c.lru.Remove(key)
		c.misses++
		c.logger.WithField("key", key.String()).Debug("cache entry expired")
		return nil, false
	}

	c.hits++
	c.logger.WithFields(logrus.Fields{
		"key":     key.String(),
		"records": len(e.records),
	}).Debug("cache hit")
	return cloneRecords(e.records), true
}

// Contains reports whether key is cached and fresh without touching LRU
// recency or the hit/miss counters. Used by the warmer to skip work.
func (c *QueryCache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Peek(key)
	return ok && !v.(*entry).expired(time.Now())
}

// Put inserts or replaces the payload for key, evicting the
// least-recently-used entry when at capacity. The payload is copied so
// later caller mutations cannot reach the cache.
func (c *QueryCache) Put(key Key, records []models.HistoryRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{
		records:   cloneRecords(records),
		createdAt: time.Now(),
		ttl:       c.cfg.TTL,
	})
	c.logger.WithFields(logrus.Fields{
		"key":     key.String(),
		"records": len(records),
	}).Debug("cache store")
}

// Clear removes all entries and resets the hit/miss counters. Statistics
// describe the current cache epoch, so a cleared cache starts from zero.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.hits = 0
	c.misses = 0
	c.logger.Info("cache cleared")
}

// EvictExpired sweeps the whole cache and removes every entry older than
// its TTL, independent of LRU order. Returns the number of evictions.
func (c *QueryCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok && v.(*entry).expired(now) {
			c.lru.Remove(k)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.WithField("evicted", evicted).Debug("expired entries swept")
	}
	return evicted
}

// Stats returns a statistics snapshot. The memory figure is a coarse
// heuristic (fixed bytes per cached point), not an exact measurement.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100.0
	}

	memory := 0
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok {
			memory += len(v.(*entry).records) * bytesPerRecord
		}
	}

	return Stats{
		Hits:                 c.hits,
		Misses:               c.misses,
		HitRate:              hitRate,
		Entries:              c.lru.Len(),
		MaxEntries:           c.cfg.MaxEntries,
		EstimatedMemoryBytes: memory,
	}
}

func cloneRecords(records []models.HistoryRecord) []models.HistoryRecord {
	out := make([]models.HistoryRecord, len(records))
	copy(out, records)
	return out
}
