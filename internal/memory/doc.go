// Package memory configures GOMEMLIMIT from container limits and provides
// backpressure for the frame pipelines.
//
// Call [ConfigureFromEnv] early in main. It reads:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap, default 0.6
//
// The default ratio is lower than for pure Go services because decoded
// frames are allocated by OpenCV outside the Go heap.
//
// A [Monitor] samples the resident set size and, above the critical water
// mark, holds back new batches until usage falls below the high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	cfg := pipeline.Config{Gate: monitor.Wait}
//
// Frames already in flight finish normally; only the next scan waits.
package memory
