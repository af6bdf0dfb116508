package pipeline

import "time"

// Observer records pipeline metrics. The implementation lives in the metrics
// package so that pipeline does not import Prometheus.
type Observer interface {
	// ObserveBatch is called after a batch has been processed and emitted.
	ObserveBatch(pipeline string, size int, processing, emitting time.Duration)

	// ObserveSlot is called once per finalized slot.
	ObserveSlot(pipeline string, status SlotStatus)

	// ObserveRun is called when a run terminates; err is nil on success.
	ObserveRun(pipeline string, summary Summary, err error)

	// ObserveWorkers records the pool size used for a run.
	ObserveWorkers(pipeline string, workers int)
}

// defaultObserver is set once at startup. Nil disables recording.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

type nopObserver struct{}

func (nopObserver) ObserveBatch(string, int, time.Duration, time.Duration) {}
func (nopObserver) ObserveSlot(string, SlotStatus) {}
func (nopObserver) ObserveRun(string, Summary, error) {}
func (nopObserver) ObserveWorkers(string, int) {}

func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
