package calibration

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"video-calib/internal/pipeline"
)

// intSource yields frames 0..n-1.
func intSource(n int) pipeline.Source[int] {
	next := 0
	return pipeline.SourceFunc[int](func() (int, bool) {
		if next >= n {
			return 0, false
		}
		next++
		return next - 1, true
	})
}

// fakeDetector finds the board on the listed frames and places corner k of
// frame f at (f, k).
type fakeDetector struct {
	found map[int]bool
	fail  int
	calls atomic.Int32
}

func (d *fakeDetector) Detect(_ context.Context, frame int, board Board) (Detection, error) {
	d.calls.Add(1)
	if d.fail > 0 && frame == d.fail {
		return Detection{}, errors.New("decoder fault")
	}
	if !d.found[frame] {
		return Detection{}, nil
	}
	pts := make([]Point2, board.Corners())
	for k := range pts {
		pts[k] = Point2{X: float32(frame), Y: float32(k)}
	}
	return Detection{Points: pts, Found: true}, nil
}

type fakeSolver struct {
	object [][]Point3
	image  [][]Point2
	w, h   int
	result Parameters
	err    error
}

func (s *fakeSolver) Solve(_ context.Context, object [][]Point3, image [][]Point2, w, h int) (Parameters, error) {
	s.object, s.image, s.w, s.h = object, image, w, h
	return s.result, s.err
}

func TestDetectFramesKeepsFoundFramesInOrder(t *testing.T) {
	// Found on frames 2, 5 and 7 (1-indexed).
	det := &fakeDetector{found: map[int]bool{1: true, 4: true, 6: true}}

	for _, workers := range []int{1, 2, 4, 9} {
		var states []pipeline.State
		set, summary, err := DetectFrames(context.Background(), intSource(9), det, DetectOptions[int]{
			Workers: workers,
			Width:   1280,
			Height:  720,
			Source:  "board.mp4",
			Step:    15,
			Total:   9,
			Reporter: pipeline.ReporterFunc(func(s pipeline.State) {
				states = append(states, s)
			}),
		})
		if err != nil {
			t.Fatalf("workers=%d: DetectFrames() error = %v", workers, err)
		}

		if set.Len() != 3 {
			t.Fatalf("workers=%d: %d detections, want 3", workers, set.Len())
		}
		if !reflect.DeepEqual(set.Samples, []int{1, 4, 6}) {
			t.Errorf("workers=%d: Samples = %v, want [1 4 6]", workers, set.Samples)
		}
		for i, frame := range []float32{1, 4, 6} {
			if set.Points[i][0].X != frame {
				t.Errorf("workers=%d: Points[%d] came from frame %v, want %v", workers, i, set.Points[i][0].X, frame)
			}
		}
		if set.Board != DefaultBoard || set.Width != 1280 || set.Height != 720 {
			t.Errorf("workers=%d: set metadata = %v %dx%d", workers, set.Board, set.Width, set.Height)
		}
		if set.Source != "board.mp4" || set.Step != 15 || set.Planned != 9 {
			t.Errorf("workers=%d: source metadata = %q step %d planned %d", workers, set.Source, set.Step, set.Planned)
		}
		if summary.Frames != 9 || summary.Accepted != 3 {
			t.Errorf("workers=%d: summary = %+v", workers, summary)
		}
		if len(states) != 9 || states[8].Completed != 9 || states[8].Total != 9 {
			t.Errorf("workers=%d: progress states = %+v", workers, states)
		}
	}
}

func TestDetectFramesReleasesFrames(t *testing.T) {
	det := &fakeDetector{}
	var released atomic.Int32

	_, _, err := DetectFrames(context.Background(), intSource(7), det, DetectOptions[int]{
		Workers: 3,
		Release: func(int) { released.Add(1) },
	})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}
	if got := released.Load(); got != 7 {
		t.Errorf("released %d frames, want 7", got)
	}
}

func TestDetectFramesGate(t *testing.T) {
	det := &fakeDetector{found: map[int]bool{0: true}}
	var gates atomic.Int32

	set, _, err := DetectFrames(context.Background(), intSource(7), det, DetectOptions[int]{
		Workers: 3,
		Gate: func(context.Context) error {
			gates.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}
	// Three batches plus the empty fill that ends the stream.
	if got := gates.Load(); got != 4 {
		t.Errorf("gate called %d times, want 4", got)
	}
	if set.Len() != 1 {
		t.Errorf("set.Len() = %d, want 1", set.Len())
	}
}

func TestDetectFramesFault(t *testing.T) {
	det := &fakeDetector{fail: 3}
	_, _, err := DetectFrames(context.Background(), intSource(8), det, DetectOptions[int]{Workers: 2})

	var slotErr *pipeline.SlotError
	if !errors.As(err, &slotErr) || slotErr.Index != 3 {
		t.Fatalf("DetectFrames() error = %v, want SlotError for frame 3", err)
	}
}

func TestDetectFramesRejectsBadBoard(t *testing.T) {
	_, _, err := DetectFrames(context.Background(), intSource(1), &fakeDetector{}, DetectOptions[int]{
		Board: Board{Cols: 1, Rows: 1},
	})
	if err == nil {
		t.Error("DetectFrames() error = nil for a 1x1 board")
	}
}

func TestCalibrate(t *testing.T) {
	det := &fakeDetector{found: map[int]bool{0: true, 3: true}}
	set, _, err := DetectFrames(context.Background(), intSource(5), det, DetectOptions[int]{
		Workers: 2, Width: 1920, Height: 1080,
	})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}

	want := Parameters{Fx: 1400, Fy: 1400, Px: 960, Py: 540, Dist: []float64{0.1, 0, 0, 0, 0}}
	solver := &fakeSolver{result: want}

	got, err := Calibrate(context.Background(), set, solver)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Calibrate() = %+v, want %+v", got, want)
	}

	// Width first, then height.
	if solver.w != 1920 || solver.h != 1080 {
		t.Errorf("solver got frame size %dx%d, want 1920x1080", solver.w, solver.h)
	}
	if len(solver.object) != 2 || len(solver.image) != 2 {
		t.Fatalf("solver got %d object sets and %d image sets, want 2 each", len(solver.object), len(solver.image))
	}
	if !reflect.DeepEqual(solver.object[0], DefaultBoard.ObjectPoints()) {
		t.Error("object points do not match the board grid")
	}
	solver.object[0][0].X = 42
	if solver.object[1][0].X == 42 {
		t.Error("object point sets share memory")
	}
}

func TestCalibrateErrors(t *testing.T) {
	t.Run("no detections", func(t *testing.T) {
		_, err := Calibrate(context.Background(), NewDetectionSet(DefaultBoard, 640, 480), &fakeSolver{})
		if !errors.Is(err, ErrNoDetections) {
			t.Errorf("Calibrate() error = %v, want ErrNoDetections", err)
		}
	})

	t.Run("nil set", func(t *testing.T) {
		if _, err := Calibrate(context.Background(), nil, &fakeSolver{}); !errors.Is(err, ErrNoDetections) {
			t.Errorf("Calibrate() error = %v, want ErrNoDetections", err)
		}
	})

	t.Run("corner count mismatch", func(t *testing.T) {
		set := NewDetectionSet(DefaultBoard, 640, 480)
		set.Add(0, make([]Point2, 12))
		if _, err := Calibrate(context.Background(), set, &fakeSolver{}); err == nil {
			t.Error("Calibrate() error = nil for short corner set")
		}
	})

	t.Run("solver failure is wrapped", func(t *testing.T) {
		boom := errors.New("singular matrix")
		set := NewDetectionSet(DefaultBoard, 640, 480)
		set.Add(0, make([]Point2, DefaultBoard.Corners()))
		if _, err := Calibrate(context.Background(), set, &fakeSolver{err: boom}); !errors.Is(err, boom) {
			t.Errorf("Calibrate() error = %v, want %v", err, boom)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		set := NewDetectionSet(DefaultBoard, 640, 480)
		set.Add(0, make([]Point2, DefaultBoard.Corners()))
		if _, err := Calibrate(ctx, set, &fakeSolver{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Calibrate() error = %v, want context.Canceled", err)
		}
	})
}

// negate is an Undistorter over ints.
type negate struct{}

func (negate) Undistort(_ context.Context, f int) (int, error) { return -f, nil }

type sliceWriter struct {
	frames []int
	closed bool
}

func (w *sliceWriter) Write(f int) error {
	w.frames = append(w.frames, f)
	return nil
}

func (w *sliceWriter) Close() error {
	w.closed = true
	return nil
}

func TestUndistortVideo(t *testing.T) {
	w := &sliceWriter{}
	var released atomic.Int32

	summary, err := UndistortVideo[int](context.Background(), intSource(6), w, negate{}, UndistortOptions[int]{
		Workers: 4,
		Total:   6,
		Release: func(int) { released.Add(1) },
	})
	if err != nil {
		t.Fatalf("UndistortVideo() error = %v", err)
	}

	if want := []int{0, -1, -2, -3, -4, -5}; !reflect.DeepEqual(w.frames, want) {
		t.Errorf("written = %v, want %v", w.frames, want)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
	if summary.Frames != 6 || summary.Batches != 2 {
		t.Errorf("summary = %+v", summary)
	}
	// Inputs and outputs are both released.
	if got := released.Load(); got != 12 {
		t.Errorf("released %d frames, want 12", got)
	}
}

func TestUndistortVideoGateError(t *testing.T) {
	w := &sliceWriter{}
	errPressure := errors.New("memory pressure")
	calls := 0

	_, err := UndistortVideo[int](context.Background(), intSource(6), w, negate{}, UndistortOptions[int]{
		Workers: 2,
		Gate: func(context.Context) error {
			calls++
			if calls > 1 {
				return errPressure
			}
			return nil
		},
	})
	if !errors.Is(err, errPressure) {
		t.Fatalf("UndistortVideo() error = %v, want %v", err, errPressure)
	}
	if want := []int{0, -1}; !reflect.DeepEqual(w.frames, want) {
		t.Errorf("written = %v, want %v", w.frames, want)
	}
	if !w.closed {
		t.Error("writer not closed after gate error")
	}
}

func TestDetectionSetCacheRoundTrip(t *testing.T) {
	det := &fakeDetector{found: map[int]bool{2: true, 3: true}}
	set, _, err := DetectFrames(context.Background(), intSource(4), det, DetectOptions[int]{
		Workers: 2, Width: 640, Height: 480, Source: "cal.mp4", Step: 12, Total: 4,
	})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "detections.cbor")
	if err := SaveDetections(set, path); err != nil {
		t.Fatalf("SaveDetections() error = %v", err)
	}
	loaded, err := LoadDetections(path)
	if err != nil {
		t.Fatalf("LoadDetections() error = %v", err)
	}

	if !loaded.Created.Equal(set.Created) {
		t.Errorf("Created = %v, want %v", loaded.Created, set.Created)
	}
	loaded.Created = set.Created
	if !reflect.DeepEqual(loaded, set) {
		t.Errorf("LoadDetections() = %+v, want %+v", loaded, set)
	}

	solver := &fakeSolver{}
	if _, err := Calibrate(context.Background(), loaded, solver); err != nil {
		t.Fatalf("Calibrate(loaded) error = %v", err)
	}
	if len(solver.image) != 2 {
		t.Errorf("solver got %d image sets, want 2", len(solver.image))
	}
}
