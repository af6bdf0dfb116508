package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"testing"
	"time"
)

const testLimit = 100 * 1024 * 1024

func newTestMonitor(used *uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})
	m.sample = func() uint64 { return *used }
	return m
}

func TestNewMonitor(t *testing.T) {
	m := NewMonitor(Config{MemoryLimitBytes: testLimit, HighWaterMark: 0.5, CriticalWaterMark: 0.9})
	if m.limit != testLimit {
		t.Errorf("limit = %d, want %d", m.limit, testLimit)
	}
	if m.config.CheckInterval != DefaultConfig().CheckInterval {
		t.Errorf("zero CheckInterval not defaulted: %v", m.config.CheckInterval)
	}
	if m.config.MaxWait != DefaultConfig().MaxWait {
		t.Errorf("zero MaxWait not defaulted: %v", m.config.MaxWait)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f should be below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
}

func TestMonitorPauseAndResume(t *testing.T) {
	used := uint64(10 * 1024 * 1024)
	m := newTestMonitor(&used)

	tests := []struct {
		name       string
		usedMB     uint64
		wantPaused bool
	}{
		{"low usage", 10, false},
		{"above high water mark only", 75, false},
		{"critical", 90, true},
		{"between marks stays paused", 80, true},
		{"below high water mark resumes", 60, false},
		{"critical again", 95, true},
	}
	for _, tt := range tests {
		used = tt.usedMB * 1024 * 1024
		m.checkMemory()
		if got := m.IsPaused(); got != tt.wantPaused {
			t.Errorf("%s: IsPaused() = %v, want %v", tt.name, got, tt.wantPaused)
		}
	}
}

func TestWaitReturnsImmediatelyWhenNotPaused(t *testing.T) {
	used := uint64(0)
	m := newTestMonitor(&used)
	m.checkMemory()

	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestWaitBlocksUntilRecovered(t *testing.T) {
	used := uint64(90 * 1024 * 1024)
	m := newTestMonitor(&used)
	m.checkMemory()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait() returned while memory is critical")
	case <-time.After(50 * time.Millisecond):
	}

	used = 10 * 1024 * 1024
	m.checkMemory()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after recovery")
	}
}

func TestWaitCancelled(t *testing.T) {
	used := uint64(90 * 1024 * 1024)
	m := newTestMonitor(&used)
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestWaitReleasedByStop(t *testing.T) {
	used := uint64(90 * 1024 * 1024)
	m := newTestMonitor(&used)
	m.checkMemory()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() not released by Stop")
	}
}

func TestMonitorStartStop(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1 << 40,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if m.IsPaused() {
		t.Error("monitor paused with a 1 TiB limit")
	}
	if cur, _, _ := m.GetStats(); cur <= 0 {
		t.Errorf("no memory sample recorded: %d", cur)
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	m := NewMonitor(Config{CheckInterval: time.Millisecond})
	m.limit = 0
	m.Start()
	defer m.Stop()

	if got := m.GetUsage(); got != 0 {
		t.Errorf("GetUsage() = %f, want 0", got)
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestGetStatsAndUsage(t *testing.T) {
	used := uint64(25 * 1024 * 1024)
	m := newTestMonitor(&used)
	m.checkMemory()

	current, limit, usage := m.GetStats()
	if current != int64(used) || limit != testLimit {
		t.Errorf("GetStats() = %d, %d", current, limit)
	}
	if usage != 0.25 || m.GetUsage() != 0.25 {
		t.Errorf("usage = %f / %f, want 0.25", usage, m.GetUsage())
	}
}

func TestProcessMemory(t *testing.T) {
	if got := processMemory(); got == 0 {
		t.Error("processMemory() = 0")
	}
}

func TestNewMonitorLimitSource(t *testing.T) {
	tests := []struct {
		name        string
		memoryLimit string
		goMemLimit  int64
		want        int64
	}{
		{name: "container limit wins over heap budget", memoryLimit: "40000000", goMemLimit: 24000000, want: 40000000},
		{name: "heap budget without container limit", goMemLimit: 24000000, want: 24000000},
		{name: "invalid container limit", memoryLimit: "lots", goMemLimit: 24000000, want: 24000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("MEMORY_LIMIT", tt.memoryLimit)
			debug.SetMemoryLimit(tt.goMemLimit)

			m := NewMonitor(DefaultConfig())
			if m.limit != tt.want {
				t.Errorf("limit = %d, want %d", m.limit, tt.want)
			}
		})
	}
}

// Resident memory at 55% of the container is normal, even though it is
// above the heap budget GOMEMLIMIT gets from MEMORY_RATIO.
func TestIdleResidentMemoryDoesNotCloseGate(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("MEMORY_LIMIT", "40000000")
	debug.SetMemoryLimit(24000000)

	m := NewMonitor(DefaultConfig())
	m.sample = func() uint64 { return 22000000 }
	m.checkMemory()

	if m.IsPaused() {
		t.Fatalf("paused at %.2f of the limit", m.GetUsage())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestGateReopensWhenUsageDrops(t *testing.T) {
	var used atomic.Uint64
	used.Store(90 * 1024 * 1024)

	m := NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Millisecond,
		MaxWait:           time.Hour,
	})
	m.sample = used.Load
	m.Start()
	defer m.Stop()

	if !m.IsPaused() {
		t.Fatal("monitor not paused above the critical water mark")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	used.Store(50 * 1024 * 1024)

	if err := <-done; err != nil {
		t.Fatalf("Wait() error = %v, want the gate to reopen", err)
	}
	if m.IsPaused() {
		t.Error("still paused after usage dropped")
	}
}

func TestWaitGivesUpAfterMaxWait(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
		MaxWait:           30 * time.Millisecond,
	})
	m.sample = func() uint64 { return 95 * 1024 * 1024 }
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v, want nil after MaxWait", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Wait() returned after %v, before MaxWait", elapsed)
	}
	if !m.IsPaused() {
		t.Error("MaxWait should not clear the paused state")
	}
}
