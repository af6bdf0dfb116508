package metrics

import (
	"context"
	"errors"
	"time"

	"video-calib/internal/pipeline"
)

// pipelineObserver implements pipeline.Observer using the Prometheus
// metrics declared in this package.
type pipelineObserver struct{}

// NewPipelineObserver creates an observer that records pipeline metrics
// into the counters and histograms declared in metrics.go.
func NewPipelineObserver() pipeline.Observer {
	return &pipelineObserver{}
}

func (o *pipelineObserver) ObserveBatch(name string, size int, processing, emitting time.Duration) {
	PipelineBatchesTotal.WithLabelValues(name).Inc()
	PipelineBatchSize.WithLabelValues(name).Observe(float64(size))
	PipelinePhaseDuration.WithLabelValues(name, "processing").Observe(processing.Seconds())
	PipelinePhaseDuration.WithLabelValues(name, "emitting").Observe(emitting.Seconds())
}

func (o *pipelineObserver) ObserveSlot(name string, status pipeline.SlotStatus) {
	PipelineFramesTotal.WithLabelValues(name, status.String()).Inc()
}

func (o *pipelineObserver) ObserveRun(name string, summary pipeline.Summary, err error) {
	PipelineRunsTotal.WithLabelValues(name, RunResult(err)).Inc()
	PipelineLastRunDuration.WithLabelValues(name).Set(summary.Duration.Seconds())
	PipelineLastRunFrames.WithLabelValues(name).Set(float64(summary.Frames))
}

func (o *pipelineObserver) ObserveWorkers(name string, workers int) {
	PipelineWorkers.WithLabelValues(name).Set(float64(workers))
}

// RunResult maps a run error to the "result" label value.
func RunResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
