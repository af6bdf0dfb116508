package memory

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"video-calib/internal/logging"
	"video-calib/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the process memory limit the resident set is
	// compared against (0 = MEMORY_LIMIT, then GOMEMLIMIT, or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which a paused
	// pipeline resumes (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which new batches are held back
	// (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check memory usage
	CheckInterval time.Duration

	// MaxWait bounds how long Wait holds back one batch. No frames are in
	// flight while the gate is closed, so usage may never drop on its own.
	MaxWait time.Duration
}

// DefaultConfig returns the defaults used by the commands.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes:  0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
		MaxWait:           30 * time.Second,
	}
}

// Monitor samples process memory and holds back new frame batches while
// usage is critical. Decoded frames live in OpenCV's C heap, so usage is
// the resident set size where the platform exposes it.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	stopOnce sync.Once
	stopChan chan struct{}

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	// The sample is the whole process, so the limit must be too. GOMEMLIMIT
	// only budgets the Go heap and is a fallback.
	if limit == 0 {
		if container := containerLimit(); container > 0 {
			limit = container
			logging.Debug("Memory monitor using MEMORY_LIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		if goMemLimit := currentGoMemLimit(); goMemLimit > 0 {
			limit = goMemLimit
			logging.Debug("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	if config.MaxWait <= 0 {
		config.MaxWait = DefaultConfig().MaxWait
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		sample:    processMemory,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	m.checkMemory()
	go m.monitorLoop()
}

// Stop stops the monitor and releases anything waiting on it.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	used := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = used
	if m.limit <= 0 {
		return
	}

	usage := float64(used) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), holding back new frames", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.pauseChan)
		m.pauseChan = make(chan struct{})
	}
}

// Wait blocks while memory usage is critical. It returns nil once usage
// drops below the high water mark, the monitor is stopped or MaxWait has
// passed, and ctx.Err() if ctx ends first. Its signature matches the
// pipeline's scan gate.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return nil
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	logging.Debug("Waiting for memory usage to drop below %.0f%%", m.config.HighWaterMark*100)
	timer := time.NewTimer(m.config.MaxWait)
	defer timer.Stop()

	select {
	case <-pauseChan:
		return nil
	case <-m.stopChan:
		return nil
	case <-timer.C:
		logging.Warn("Memory still at %.1f%% of limit after %v, reading the next batch anyway",
			m.GetUsage()*100, m.config.MaxWait)
		metrics.MemoryWaitTimeouts.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused returns true while new batches are held back
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetUsage returns current memory usage as a fraction of the limit, or 0
// when no limit is configured
func (m *Monitor) GetUsage() float64 {
	if m.limit == 0 {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// GetStats returns the last sample, the limit and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	currentInt64 := int64(math.MaxInt64)
	if m.current <= math.MaxInt64 {
		currentInt64 = int64(m.current)
	}

	var usageRatio float64
	if m.limit > 0 {
		usageRatio = float64(m.current) / float64(m.limit)
	}
	return currentInt64, m.limit, usageRatio
}

// processMemory returns the resident set size, falling back to the memory
// the Go runtime obtained from the OS when /proc is unavailable.
func processMemory() uint64 {
	if p, err := procfs.Self(); err == nil {
		if stat, err := p.Stat(); err == nil && stat.ResidentMemory() > 0 {
			return uint64(stat.ResidentMemory())
		}
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys
}
