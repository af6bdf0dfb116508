package workers

import (
	"os"
	"runtime"
	"strconv"
)

const (
	// DefaultWorkers is used when the available parallelism cannot be
	// determined.
	DefaultWorkers = 4

	// EnvOverride names the environment variable that pins the worker count.
	EnvOverride = "FRAME_WORKERS"
)

// availableParallelism reports the CPUs usable by this process. GOMAXPROCS
// follows container CPU limits in Go 1.19+. Replaced in tests.
var availableParallelism = func() int {
	return runtime.GOMAXPROCS(0)
}

// Count returns the number of frame workers to run.
//
// The multiplier scales the available parallelism; 1.0 suits the CPU-bound
// per-frame transforms (corner detection, undistortion). The limit caps the
// result; use 0 for no limit.
//
// FRAME_WORKERS overrides the calculation when set to a positive integer.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := availableParallelism()
	if available < 1 {
		available = DefaultWorkers
	}

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForFrames returns the worker count for per-frame transforms (1 per CPU).
func ForFrames(limit int) int {
	return Count(1.0, limit)
}

// Resolve returns requested when it is positive, otherwise ForFrames(0).
// Commands use it to honour an explicit --workers flag.
func Resolve(requested int) int {
	if requested > 0 {
		return requested
	}
	return ForFrames(0)
}
