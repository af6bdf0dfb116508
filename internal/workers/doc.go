/*
Package workers determines how many frames are processed in parallel.

Batches are sized to the worker count, so this value controls both the
number of goroutines running the per-frame transform and the number of
frames held in memory at once.

The count is derived from runtime.GOMAXPROCS, which respects container CPU
limits, and falls back to DefaultWorkers (4) when no parallelism can be
determined:

	n := workers.ForFrames(0)  // one worker per CPU, no cap
	n := workers.ForFrames(8)  // at most 8
	n := workers.Resolve(flag) // explicit flag value wins when positive

Set FRAME_WORKERS to pin the count regardless of the CPU budget:

	FRAME_WORKERS=2 video-calib undistort input.mp4
*/
package workers
