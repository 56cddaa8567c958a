package cache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically evicts expired cache entries. It holds only a
// reference to the cache and runs for the lifetime of the owning
// process; foreground requests are never blocked beyond the cache's own
// lock hold.
type Sweeper struct {
	cache    *QueryCache
	cron     *cron.Cron
	interval time.Duration
	logger   *logrus.Entry
}

// NewSweeper creates a sweeper running every interval (default one
// minute for non-positive values).
func NewSweeper(c *QueryCache, interval time.Duration, logger *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		cache:    c,
		cron:     cron.New(),
		interval: interval,
		logger:   logger.WithField("component", "cache-sweeper"),
	}
}

// Start schedules the sweep.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("interval", s.interval.String()).Info("eviction sweep scheduled")
	return nil
}

func (s *Sweeper) sweep() {
	if n := s.cache.EvictExpired(); n > 0 {
		s.logger.WithField("evicted", n).Info("eviction sweep removed expired entries")
	}
}

// Stop cancels the scheduled sweep.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
