package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/industryvis/historian/internal/models"
)

// WarmupTask describes one query whose result should be pre-populated
// into the cache. Processing defaults to the zero processing config so
// the warmed key matches a later query issued with defaults.
type WarmupTask struct {
	Table       string
	StartTime   string
	EndTime     string
	Tags        []string
	Processing  *models.ProcessingConfig
	Description string
}

// NewWarmupTask creates a task with the default processing config.
func NewWarmupTask(table, startTime, endTime string, tags []string, description string) WarmupTask {
	cfg := models.DefaultProcessingConfig()
	return WarmupTask{
		Table:       table,
		StartTime:   startTime,
		EndTime:     endTime,
		Tags:        tags,
		Processing:  &cfg,
		Description: description,
	}
}

// CacheKey derives the fingerprint this task warms. It must match the
// key the query path would build for the same request.
func (t WarmupTask) CacheKey() Key {
	return NewKey(t.Table, t.StartTime, t.EndTime, t.Tags, t.Processing)
}

// WarmupProgress reports warm-up completion state.
type WarmupProgress struct {
	Total        int
	Completed    int
	CurrentTask  string
	Done         bool
	SuccessCount int
	FailureCount int
}

func (p *WarmupProgress) update(task string, success bool) {
	p.Completed++
	p.CurrentTask = task
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	if p.Completed >= p.Total {
		p.Done = true
		p.CurrentTask = ""
	}
}

// Percentage returns completion as 0-100.
func (p WarmupProgress) Percentage() float64 {
	if p.Total == 0 {
		return 100.0
	}
	return float64(p.Completed) / float64(p.Total) * 100.0
}

// WarmupFetcher executes the backing-store query for one task and
// returns the fully processed records to cache.
type WarmupFetcher func(ctx context.Context, task WarmupTask) ([]models.HistoryRecord, error)

// Warmer pre-populates the cache by running warm-up tasks through a
// fetcher. Queries are throttled so warm-up never monopolizes the
// backing store; tasks whose fingerprint is already cached are skipped.
type Warmer struct {
	cache      *QueryCache
	limiter    *rate.Limiter
	progressCh chan<- WarmupProgress
	logger     *logrus.Entry
}

// NewWarmer creates a warmer issuing at most queriesPerSecond fetches.
func NewWarmer(c *QueryCache, queriesPerSecond float64, logger *logrus.Logger) *Warmer {
	if queriesPerSecond <= 0 {
		queriesPerSecond = 2
	}
	return &Warmer{
		cache:   c,
		limiter: rate.NewLimiter(rate.Limit(queriesPerSecond), 1),
		logger:  logger.WithField("component", "cache-warmer"),
	}
}

// WithProgressChannel attaches a channel receiving a progress snapshot
// after each task. Sends are non-blocking; slow consumers miss updates.
func (w *Warmer) WithProgressChannel(ch chan<- WarmupProgress) *Warmer {
	w.progressCh = ch
	return w
}

// Warm runs the tasks sequentially. Individual fetch failures are
// recorded in the progress and do not abort the run; a canceled context
// does.
func (w *Warmer) Warm(ctx context.Context, tasks []WarmupTask, fetch WarmupFetcher) (WarmupProgress, error) {
	progress := WarmupProgress{Total: len(tasks)}
	w.logger.WithField("tasks", len(tasks)).Info("cache warm-up started")

	for _, task := range tasks {
		key := task.CacheKey()

		if w.cache.Contains(key) {
			w.logger.WithField("task", task.Description).Debug("already cached, skipping")
			progress.update(task.Description, true)
			w.sendProgress(progress)
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return progress, err
		}

		records, err := fetch(ctx, task)
		if err != nil {
			w.logger.WithFields(logrus.Fields{
				"task":  task.Description,
				"error": err,
			}).Warn("warm-up fetch failed")
			progress.update(task.Description, false)
		} else {
			w.cache.Put(key, records)
			w.logger.WithField("task", task.Description).Debug("warm-up task cached")
			progress.update(task.Description, true)
		}
		w.sendProgress(progress)
	}

	w.logger.WithFields(logrus.Fields{
		"succeeded": progress.SuccessCount,
		"failed":    progress.FailureCount,
	}).Info("cache warm-up finished")
	return progress, nil
}

func (w *Warmer) sendProgress(p WarmupProgress) {
	if w.progressCh == nil {
		return
	}
	select {
	case w.progressCh <- p:
	default:
	}
}

// WarmupStrategy generates the task list for a warm-up run.
type WarmupStrategy interface {
	Tasks() []WarmupTask
	Name() string
}

// RecentTimeRangeStrategy warms one task per day for the most recent
// Days days against a fixed tag set.
type RecentTimeRangeStrategy struct {
	Table string
	Tags  []string
	Days  int
}

// Tasks implements WarmupStrategy.
func (s RecentTimeRangeStrategy) Tasks() []WarmupTask {
	now := time.Now()
	tasks := make([]WarmupTask, 0, s.Days)
	for offset := 0; offset < s.Days; offset++ {
		end := now.AddDate(0, 0, -offset)
		start := end.AddDate(0, 0, -1)
		tasks = append(tasks, NewWarmupTask(
			s.Table,
			start.Format("2006-01-02T00:00:00"),
			end.Format("2006-01-02T00:00:00"),
			s.Tags,
			fmt.Sprintf("recent day %d (%s)", offset+1, start.Format("2006-01-02")),
		))
	}
	return tasks
}

// Name implements WarmupStrategy.
func (s RecentTimeRangeStrategy) Name() string { return "RecentTimeRange" }

// FixedTimeRangeStrategy warms an explicit task list.
type FixedTimeRangeStrategy struct {
	tasks []WarmupTask
}

// Add appends a task and returns the strategy for chaining.
func (s *FixedTimeRangeStrategy) Add(task WarmupTask) *FixedTimeRangeStrategy {
	s.tasks = append(s.tasks, task)
	return s
}

// Tasks implements WarmupStrategy.
func (s *FixedTimeRangeStrategy) Tasks() []WarmupTask {
	out := make([]WarmupTask, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Name implements WarmupStrategy.
func (s *FixedTimeRangeStrategy) Name() string { return "FixedTimeRange" }
