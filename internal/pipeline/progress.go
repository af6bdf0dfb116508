package pipeline

// State is the progress snapshot passed to a Reporter after each slot is
// finalized by the sink.
type State struct {
	// Index is the stream index of the slot just finalized.
	Index int `json:"index"`
	// Completed is Index+1; it never decreases within a run.
	Completed int `json:"completed"`
	// Total is the planned number of frames, or 0 when unknown.
	Total int `json:"total"`
	// Status is what the sink did with the slot.
	Status SlotStatus `json:"status"`
}

// Reporter receives progress updates from the driver's control goroutine.
type Reporter interface {
	Report(state State)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(State)

// Report calls f.
func (f ReporterFunc) Report(state State) {
	f(state)
}

// MultiReporter fans a state out to several reporters in order.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(state State) {
	for _, r := range m {
		if r != nil {
			r.Report(state)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(State) {}
