package metrics

import "runtime"

// Pipeline names used as label values.
var pipelineNames = []string{"detect", "undistort"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(version, commit string) {
	AppInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)

	// --- Pipeline metrics (per pipeline) ---
	for _, name := range pipelineNames {
		PipelineBatchesTotal.WithLabelValues(name)
		PipelineBatchSize.WithLabelValues(name)
		PipelineWorkers.WithLabelValues(name)
		PipelineLastRunDuration.WithLabelValues(name)
		PipelineLastRunFrames.WithLabelValues(name)
		for _, phase := range []string{"processing", "emitting"} {
			PipelinePhaseDuration.WithLabelValues(name, phase)
		}
		for _, result := range []string{"success", "error", "cancelled"} {
			PipelineRunsTotal.WithLabelValues(name, result)
		}
	}
	PipelineFramesTotal.WithLabelValues("detect", "accepted")
	PipelineFramesTotal.WithLabelValues("detect", "skipped")
	PipelineFramesTotal.WithLabelValues("undistort", "written")

	// --- Videos per command ---
	for _, cmd := range []string{"calibrate", "undistort", "watch"} {
		VideosProcessedTotal.WithLabelValues(cmd, "success")
		VideosProcessedTotal.WithLabelValues(cmd, "error")
	}

	// --- History DB operations ---
	for _, op := range []string{"initialize_schema", "begin_run", "finish_run", "get_run", "list_runs", "count_runs"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Preview encoders ---
	for _, enc := range []string{"vips", "imaging"} {
		PreviewGenerationsTotal.WithLabelValues(enc, "success")
		PreviewGenerationsTotal.WithLabelValues(enc, "error")
	}
}
