// Package metrics provides Prometheus instrumentation for video-calib.
//
// All metrics are prefixed with "video_calib_" and registered with the
// default registry through promauto. They are exposed by the status server
// on /metrics when --status-addr is set.
//
// # Metric Categories
//
// ## Pipeline Metrics
//
// Recorded through the pipeline.Observer returned by NewPipelineObserver,
// labelled by pipeline ("detect" or "undistort"):
//   - PipelineBatchesTotal: Counter of processed batches
//   - PipelineFramesTotal: Counter of finalized frames by sink status
//   - PipelineBatchSize: Histogram of frames per batch
//   - PipelinePhaseDuration: Histogram of processing and emitting time per batch
//   - PipelineRunsTotal: Counter of runs by result (success/error/cancelled)
//   - PipelineLastRunDuration, PipelineLastRunFrames: Gauges for the last run
//   - PipelineWorkers: Gauge of the worker pool size
//
// ## Calibration Metrics
//
//   - CalibrationDetections: Gauge of accepted detections in the last calibration
//   - CalibrationSolveDuration: Histogram of solver time
//   - VideosProcessedTotal: Counter of videos by command and status
//
// ## History, Status, Watch and Preview Metrics
//
//   - DBQueryTotal, DBQueryDuration: run history queries by operation
//   - HistoryRunsTotal: Gauge of recorded runs by status, set by the Collector
//   - HTTPRequestsTotal, HTTPRequestDuration, WebSocketClients: status server
//   - WatcherEventsTotal, WatcherErrors, WatcherQueued: watch mode
//   - PreviewGenerationsTotal: preview snapshots by encoder and status
//
// ## Memory Metrics
//
//   - GoMemLimit, GoMemAllocBytes, GoMemSysBytes, GoGCRuns: Go runtime
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses, MemoryWaitTimeouts: batch backpressure
//
// # Collector
//
// The [Collector] type periodically refreshes the runtime memory gauges and,
// when given a [StatsProvider], the run history gauges:
//
//	collector := metrics.NewCollector(history, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Frames per second while undistorting:
//
//	rate(video_calib_pipeline_frames_total{pipeline="undistort"}[1m])
//
// Detection hit rate:
//
//	rate(video_calib_pipeline_frames_total{pipeline="detect",status="accepted"}[5m]) /
//	rate(video_calib_pipeline_frames_total{pipeline="detect"}[5m])
//
// P95 processing time per batch:
//
//	histogram_quantile(0.95, sum(rate(video_calib_pipeline_phase_duration_seconds_bucket{phase="processing"}[5m])) by (le, pipeline))
package metrics
