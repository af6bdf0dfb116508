package metrics

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) GetStats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats, m.err
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func goVersion() string {
	return runtime.Version()
}

func TestNewCollectorDefaultsInterval(t *testing.T) {
	c := NewCollector(nil, 0)
	if c.interval <= 0 {
		t.Errorf("interval = %v, want a positive default", c.interval)
	}
}

func TestCollectUpdatesHistoryGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{TotalRuns: 7, SucceededRuns: 5, FailedRuns: 1, RunningRuns: 1}}
	c := NewCollector(provider, time.Minute)

	c.collect()

	if got := gaugeValue(t, HistoryRunsTotal.WithLabelValues("success")); got != 5 {
		t.Errorf("success runs = %v, want 5", got)
	}
	if got := gaugeValue(t, HistoryRunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := gaugeValue(t, GoMemSysBytes); got <= 0 {
		t.Errorf("sys bytes = %v, want > 0", got)
	}
}

func TestCollectToleratesProviderError(t *testing.T) {
	provider := &mockStatsProvider{err: errors.New("database is locked")}
	c := NewCollector(provider, time.Minute)
	c.collect()
	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount())
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if provider.callCount() < 2 {
		t.Errorf("collector ran %d times, want at least 2", provider.callCount())
	}
}
