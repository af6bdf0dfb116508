package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	seen  chan string
	err   error
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.seen <- path
	return r.err
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case p := <-r.seen:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
		return ""
	}
}

func (r *recorder) expectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case p := <-r.seen:
		t.Fatalf("unexpected handler call for %s", p)
	case <-time.After(d):
	}
}

func startWatch(t *testing.T, dir string, opts Options, r *recorder) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, dir, opts, r.handle) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Watch() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Watch() did not return after cancel")
		}
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestWatchHandlesNewVideo(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder()
	cancel := startWatch(t, dir, Options{Settle: 50 * time.Millisecond}, r)
	defer cancel()

	video := filepath.Join(dir, "clip.mp4")
	write(t, video, "frames")

	if got := r.wait(t); got != video {
		t.Errorf("handled %s, want %s", got, video)
	}
	r.expectNothing(t, 200*time.Millisecond)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder()
	cancel := startWatch(t, dir, Options{Settle: 30 * time.Millisecond}, r)
	defer cancel()

	write(t, filepath.Join(dir, "notes.txt"), "x")
	write(t, filepath.Join(dir, "clip_undistorted.mp4"), "x")
	write(t, filepath.Join(dir, ".partial.mp4"), "x")

	r.expectNothing(t, 300*time.Millisecond)
}

func TestWatchWaitsForWritesToSettle(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder()
	settle := 150 * time.Millisecond
	cancel := startWatch(t, dir, Options{Settle: settle}, r)
	defer cancel()

	video := filepath.Join(dir, "growing.mp4")
	f, err := os.Create(video)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := f.WriteString("chunk"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(settle / 3)
	}
	_ = f.Close()

	r.wait(t)
	r.expectNothing(t, 2*settle)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) != 1 {
		t.Errorf("handled %d times, want 1", len(r.paths))
	}
}

func TestWatchExisting(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "b.mp4"), "x")
	write(t, filepath.Join(dir, "a.mp4"), "x")
	write(t, filepath.Join(dir, "a_undistorted.mp4"), "x")

	r := newRecorder()
	cancel := startWatch(t, dir, Options{Settle: time.Hour, Existing: true}, r)
	defer cancel()

	first, second := r.wait(t), r.wait(t)
	if filepath.Base(first) != "a.mp4" || filepath.Base(second) != "b.mp4" {
		t.Errorf("handled %s then %s, want a.mp4 then b.mp4", first, second)
	}
	r.expectNothing(t, 100*time.Millisecond)
}

func TestWatchContinuesAfterHandlerError(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder()
	r.err = errors.New("cannot open video")
	cancel := startWatch(t, dir, Options{Settle: 30 * time.Millisecond}, r)
	defer cancel()

	write(t, filepath.Join(dir, "one.mp4"), "x")
	r.wait(t)
	write(t, filepath.Join(dir, "two.mp4"), "x")
	r.wait(t)
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{}, newRecorder().handle)
	if err == nil {
		t.Error("Watch(missing) error = nil")
	}
}

func TestQueueDeduplicates(t *testing.T) {
	q := newQueue(4)
	q.push("a.mp4")
	q.push("a.mp4")
	q.push("b.mp4")
	if len(q.items) != 2 {
		t.Errorf("queued %d items, want 2", len(q.items))
	}

	q.done("a.mp4")
	q.push("a.mp4")
	if len(q.items) != 3 {
		t.Errorf("queued %d items after done, want 3", len(q.items))
	}

	q.close()
	q.close()
	q.push("c.mp4")
}

func TestQueueFull(t *testing.T) {
	q := newQueue(1)
	q.push("a.mp4")
	q.push("b.mp4")
	if len(q.items) != 1 || q.queued["b.mp4"] {
		t.Error("full queue accepted another item")
	}
}

func TestIsOutput(t *testing.T) {
	tests := map[string]bool{
		"clip_undistorted.mp4":      true,
		"/x/clip_undistorted.mov":   true,
		"clip.mp4":                  false,
		"undistorted_clip.mp4":      false,
		"clip_undistorted_copy.mp4": false,
	}
	for path, want := range tests {
		if got := isOutput(path); got != want {
			t.Errorf("isOutput(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestEventType(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
		{fsnotify.Create | fsnotify.Write, "create"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		if got := eventType(tt.op); got != tt.want {
			t.Errorf("eventType(%v) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestSettlerIgnoresTimerFromEarlierTouch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSettler(ctx, 10*time.Millisecond)
	defer s.stop()

	s.touch("/v/clip.mp4")
	var first settleEvent
	select {
	case first = <-s.out:
	case <-time.After(time.Second):
		t.Fatal("first timer never fired")
	}

	// A write that lands after the timer fired, but before the loop
	// handled its event, starts a fresh settle period.
	s.touch("/v/clip.mp4")
	if s.settled(first) {
		t.Fatal("event from the earlier timer was accepted")
	}

	select {
	case second := <-s.out:
		if !s.settled(second) {
			t.Fatal("latest timer was rejected")
		}
		if s.settled(second) {
			t.Error("same event accepted twice")
		}
	case <-time.After(time.Second):
		t.Fatal("second timer never fired")
	}
}

func TestSettlerDropForgetsPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSettler(ctx, time.Hour)
	defer s.stop()

	s.touch("/v/clip.mp4")
	gen := s.pending["/v/clip.mp4"].gen
	if !s.drop("/v/clip.mp4") {
		t.Fatal("drop() = false for a pending path")
	}
	if s.drop("/v/clip.mp4") {
		t.Error("drop() = true for a path already dropped")
	}
	if s.settled(settleEvent{path: "/v/clip.mp4", gen: gen}) {
		t.Error("dropped path settled")
	}
}
