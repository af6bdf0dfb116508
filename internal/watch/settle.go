package watch

import (
	"context"
	"time"
)

// settleEvent is sent when a file has been quiet for the settle delay. gen
// identifies the timer that fired.
type settleEvent struct {
	path string
	gen  uint64
}

type pendingFile struct {
	timer *time.Timer
	gen   uint64
}

// settler debounces file events per path. Its methods are called from the
// watch loop only; timers just send on out.
//
// A timer that already fired may be blocked sending while the file is
// touched again. Every touch therefore starts a new timer with a new
// generation, and settled rejects events from older generations.
type settler struct {
	delay   time.Duration
	out     chan settleEvent
	done    <-chan struct{}
	gen     uint64
	pending map[string]pendingFile
}

func newSettler(ctx context.Context, delay time.Duration) *settler {
	return &settler{
		delay:   delay,
		out:     make(chan settleEvent),
		done:    ctx.Done(),
		pending: make(map[string]pendingFile),
	}
}

// touch restarts the settle delay for path.
func (s *settler) touch(path string) {
	if p, ok := s.pending[path]; ok {
		p.timer.Stop()
	}
	s.gen++
	ev := settleEvent{path: path, gen: s.gen}
	s.pending[path] = pendingFile{
		gen: s.gen,
		timer: time.AfterFunc(s.delay, func() {
			select {
			case s.out <- ev:
			case <-s.done:
			}
		}),
	}
}

// drop forgets path. It reports whether path was pending.
func (s *settler) drop(path string) bool {
	p, ok := s.pending[path]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, path)
	return true
}

// settled reports whether ev is the latest timer for its path, and if so
// forgets the path.
func (s *settler) settled(ev settleEvent) bool {
	p, ok := s.pending[ev.path]
	if !ok || p.gen != ev.gen {
		return false
	}
	delete(s.pending, ev.path)
	return true
}

func (s *settler) stop() {
	for path := range s.pending {
		s.drop(path)
	}
}
