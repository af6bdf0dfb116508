package progress

import (
	"sync"
	"time"

	"video-calib/internal/pipeline"
)

// Snapshot is the externally visible state of the current or last run.
type Snapshot struct {
	RunID    string         `json:"run_id,omitempty"`
	Command  string         `json:"command,omitempty"`
	Input    string         `json:"input,omitempty"`
	Pipeline string         `json:"pipeline,omitempty"`
	Progress pipeline.State `json:"progress"`
	Running  bool           `json:"running"`
	Started  time.Time      `json:"started,omitempty"`
	Finished time.Time      `json:"finished,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Tracker records progress reported by the driver goroutine and serves it
// to other goroutines. It implements pipeline.Reporter.
type Tracker struct {
	mu       sync.RWMutex
	snap     Snapshot
	nextID   int
	watchers map[int]chan Snapshot
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{watchers: make(map[int]chan Snapshot)}
}

// Begin starts tracking a new run.
func (t *Tracker) Begin(runID, command, input string) {
	t.update(func(s *Snapshot) {
		*s = Snapshot{
			RunID:   runID,
			Command: command,
			Input:   input,
			Running: true,
			Started: time.Now(),
		}
	})
}

// Stage marks the start of a pipeline within the current run.
func (t *Tracker) Stage(name string, total int) {
	t.update(func(s *Snapshot) {
		s.Pipeline = name
		s.Progress = pipeline.State{Total: total}
	})
}

// Report implements pipeline.Reporter.
func (t *Tracker) Report(state pipeline.State) {
	t.update(func(s *Snapshot) {
		s.Progress = state
	})
}

// End marks the current run as finished.
func (t *Tracker) End(err error) {
	t.update(func(s *Snapshot) {
		s.Running = false
		s.Finished = time.Now()
		if err != nil {
			s.Error = err.Error()
		}
	})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Subscribe returns a channel receiving every update, starting with the
// current state, and a function that unsubscribes and closes the channel.
// Updates are dropped for subscribers that fall behind.
func (t *Tracker) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = ch
	ch <- t.snap
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.watchers, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.snap)
	for _, ch := range t.watchers {
		select {
		case ch <- t.snap:
		default:
		}
	}
}
