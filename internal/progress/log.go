package progress

import (
	"fmt"
	"sync"

	"video-calib/internal/logging"
	"video-calib/internal/pipeline"
)

// Log reports progress as "n frames out of N frames" info lines.
type Log struct {
	label string
	total int
	every int

	mu     sync.Mutex
	logged int
	seen   pipeline.State
}

// NewLog creates a log reporter that writes a line every `every` frames.
// Zero picks about twenty lines per run.
func NewLog(label string, total, every int) *Log {
	if every <= 0 {
		every = total / 20
		if every < 1 {
			every = 1
		}
	}
	return &Log{label: label, total: total, every: every}
}

// Report implements pipeline.Reporter.
func (l *Log) Report(state pipeline.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen = state
	if state.Completed-l.logged < l.every && state.Completed != l.totalFor(state) {
		return
	}
	l.logLocked()
}

// Finish logs the final count if the last report fell between lines.
func (l *Log) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen.Completed != l.logged {
		l.logLocked()
	}
	return nil
}

func (l *Log) logLocked() {
	l.logged = l.seen.Completed
	logging.Info("%s: %s", l.label, Line(l.seen.Completed, l.totalFor(l.seen)))
}

func (l *Log) totalFor(state pipeline.State) int {
	if state.Total > 0 {
		return state.Total
	}
	return l.total
}

// Line formats a frame count for display.
func Line(completed, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%d frames", completed)
	}
	return fmt.Sprintf("%d frames out of %d frames", completed, total)
}
