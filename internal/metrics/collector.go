package metrics

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"video-calib/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds run counts from the history database
type Stats struct {
	TotalRuns     int
	SucceededRuns int
	FailedRuns    int
	RunningRuns   int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector. provider may be nil, in
// which case only runtime memory metrics are collected.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	collectMemoryMetrics()

	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Failed to collect history stats: %v", err)
		return
	}

	HistoryRunsTotal.WithLabelValues("success").Set(float64(stats.SucceededRuns))
	HistoryRunsTotal.WithLabelValues("error").Set(float64(stats.FailedRuns))
	HistoryRunsTotal.WithLabelValues("running").Set(float64(stats.RunningRuns))

	logging.Debug("Metrics collected: runs=%d, succeeded=%d, failed=%d, running=%d",
		stats.TotalRuns, stats.SucceededRuns, stats.FailedRuns, stats.RunningRuns)
}

func collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
	GoGCRuns.Set(float64(m.NumGC))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	}
}
