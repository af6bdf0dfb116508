package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	PipelineBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_pipeline_batches_total",
			Help: "Total number of batches processed",
		},
		[]string{"pipeline"},
	)

	PipelineFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_pipeline_frames_total",
			Help: "Total number of frames finalized by the sink",
		},
		[]string{"pipeline", "status"}, // "accepted", "skipped", "written"
	)

	PipelineBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_calib_pipeline_batch_size",
			Help:    "Number of frames per batch",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32, 64},
		},
		[]string{"pipeline"},
	)

	PipelinePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_calib_pipeline_phase_duration_seconds",
			Help:    "Time spent per batch in each phase",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"pipeline", "phase"}, // "processing", "emitting"
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"pipeline", "result"}, // "success", "error", "cancelled"
	)

	PipelineLastRunDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_calib_pipeline_last_run_duration_seconds",
			Help: "Duration of the last pipeline run in seconds",
		},
		[]string{"pipeline"},
	)

	PipelineLastRunFrames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_calib_pipeline_last_run_frames",
			Help: "Frames processed by the last pipeline run",
		},
		[]string{"pipeline"},
	)

	PipelineWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_calib_pipeline_workers",
			Help: "Worker pool size of the current or last run",
		},
		[]string{"pipeline"},
	)
)

// Calibration metrics
var (
	CalibrationDetections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_calibration_detections",
			Help: "Number of sampled frames where the chessboard was found in the last calibration",
		},
	)

	CalibrationSolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_calib_calibration_solve_duration_seconds",
			Help:    "Time spent in the calibration solver",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	VideosProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_videos_processed_total",
			Help: "Total number of videos processed",
		},
		[]string{"command", "status"}, // "calibrate"/"undistort"/"watch", "success"/"error"
	)
)

// Run history metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_calib_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	HistoryRunsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_calib_history_runs",
			Help: "Number of runs recorded in the history database",
		},
		[]string{"status"},
	)
)

// Status server metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_calib_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_websocket_clients",
			Help: "Number of connected progress stream clients",
		},
	)
)

// Watch mode metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_watcher_events_total",
			Help: "Total number of filesystem events seen by the watcher",
		},
		[]string{"operation"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_calib_watcher_errors_total",
			Help: "Total number of watcher errors",
		},
	)

	WatcherQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_watcher_queued_videos",
			Help: "Videos waiting to settle before processing",
		},
	)
)

// Preview metrics
var (
	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_calib_preview_generations_total",
			Help: "Total number of preview snapshots written",
		},
		[]string{"encoder", "status"}, // "vips"/"imaging", "success"/"error"
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if not set)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_go_memory_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_go_memory_sys_bytes",
			Help: "Total memory obtained from the OS by Go",
		},
	)

	GoGCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_go_gc_runs",
			Help: "Number of completed GC cycles",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_memory_usage_ratio",
			Help: "Process resident memory as a ratio of the memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_calib_memory_paused",
			Help: "Whether batch scheduling is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_calib_memory_gc_pauses_total",
			Help: "Total number of times scheduling was paused for memory pressure",
		},
	)

	MemoryWaitTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_calib_memory_wait_timeouts_total",
			Help: "Total number of batches read after the memory gate reached its maximum wait",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_calib_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
