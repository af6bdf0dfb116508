package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"video-calib/internal/logging"
	"video-calib/internal/mediatypes"
	"video-calib/internal/metrics"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// handed to the handler.
const DefaultSettle = 2 * time.Second

const queueSize = 64

// Handler processes one settled video. Errors are logged and do not stop
// the watcher.
type Handler func(ctx context.Context, path string) error

// Options configure Watch.
type Options struct {
	// Settle is the quiet period after the last write. Zero uses
	// DefaultSettle.
	Settle time.Duration
	// Existing queues videos already in the directory at startup.
	Existing bool
}

// Watch monitors dir for new video files and hands each one, once it has
// stopped changing, to handle. Videos are handled one at a time in the
// order they settle. Watch returns nil when ctx is cancelled.
func Watch(ctx context.Context, dir string, opts Options, handle Handler) error {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	if err := watcher.Add(dir); err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	q := newQueue(queueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.drain(ctx, handle)
	}()
	defer func() {
		q.close()
		wg.Wait()
	}()

	if opts.Existing {
		videos, err := mediatypes.ListVideos(dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, v := range videos {
			if !isOutput(v) {
				q.push(v)
			}
		}
	}

	logging.Info("Watching %s for new videos (settle %s)", dir, opts.Settle)

	settle := newSettler(ctx, opts.Settle)
	defer settle.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()
			path := event.Name
			if !mediatypes.IsVideo(path) || isOutput(path) {
				continue
			}

			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				settle.touch(path)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if settle.drop(path) {
					logging.Debug("Dropped %s before it settled", filepath.Base(path))
				}
			}

		case ev := <-settle.out:
			if settle.settled(ev) {
				q.push(ev.path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// isOutput reports whether path looks like a file this tool wrote, so a
// watched directory that also receives results does not feed itself.
func isOutput(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "_undistorted")
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
