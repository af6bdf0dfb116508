package watch

import (
	"context"
	"path/filepath"
	"sync"

	"video-calib/internal/logging"
	"video-calib/internal/metrics"
)

// queue holds settled videos for the single handler goroutine. A path is
// queued at most once until it has been handled.
type queue struct {
	mu     sync.Mutex
	items  chan string
	queued map[string]bool
	closed bool
}

func newQueue(size int) *queue {
	return &queue{
		items:  make(chan string, size),
		queued: make(map[string]bool),
	}
}

func (q *queue) push(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.queued[path] {
		return
	}
	select {
	case q.items <- path:
		q.queued[path] = true
		metrics.WatcherQueued.Set(float64(len(q.queued)))
		logging.Info("Queued %s", filepath.Base(path))
	default:
		logging.Warn("Watch queue full, skipping %s", filepath.Base(path))
	}
}

func (q *queue) done(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.queued, path)
	metrics.WatcherQueued.Set(float64(len(q.queued)))
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

// drain handles queued paths until the queue is closed or ctx ends.
func (q *queue) drain(ctx context.Context, handle Handler) {
	for path := range q.items {
		if ctx.Err() != nil {
			q.done(path)
			continue
		}
		if err := handle(ctx, path); err != nil {
			logging.Error("Failed to process %s: %v", filepath.Base(path), err)
		}
		q.done(path)
	}
}
