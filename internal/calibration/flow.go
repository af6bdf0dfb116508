package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-calib/internal/logging"
	"video-calib/internal/pipeline"
)

// ErrNoDetections is returned by Calibrate when no sampled frame showed the
// board.
var ErrNoDetections = errors.New("chessboard pattern was not found in any sampled frame")

// Detector finds the board's inner corners on a frame.
type Detector[F any] interface {
	Detect(ctx context.Context, frame F, board Board) (Detection, error)
}

// Solver computes intrinsics from matched object and image point sets.
type Solver interface {
	Solve(ctx context.Context, object [][]Point3, image [][]Point2, width, height int) (Parameters, error)
}

// Undistorter removes lens distortion from a frame using the parameters it
// was created with. The returned frame is a new frame owned by the caller.
type Undistorter[F any] interface {
	Undistort(ctx context.Context, frame F) (F, error)
}

// DetectOptions configures DetectFrames.
type DetectOptions[F any] struct {
	Board   Board
	Workers int

	// Width and Height are the frame size recorded in the detection set.
	Width, Height int

	// Source names the input video in logs and in the detection set.
	Source string
	// Step is the sampling stride the source was opened with.
	Step int
	// Total is the planned number of samples.
	Total int

	Reporter pipeline.Reporter
	// Release frees a frame once the detector is done with it.
	Release func(F)
	// Gate may hold back the next batch. See pipeline.Config.
	Gate func(ctx context.Context) error
}

// DetectFrames runs chessboard detection over every frame of src and
// returns the frames where the board was found, in stream order.
func DetectFrames[F any](ctx context.Context, src pipeline.Source[F], det Detector[F], opts DetectOptions[F]) (*DetectionSet, pipeline.Summary, error) {
	board := opts.Board
	if board == (Board{}) {
		board = DefaultBoard
	}
	if err := board.Validate(); err != nil {
		return nil, pipeline.Summary{}, err
	}

	collector := pipeline.NewCollector(func(d Detection) bool { return d.Found })
	reporter := pipeline.MultiReporter{
		pipeline.ReporterFunc(func(s pipeline.State) {
			if logging.IsDebugEnabled() {
				outcome := "OK"
				if s.Status != pipeline.StatusAccepted {
					outcome = "Failed"
				}
				logging.Debug("Finding Pattern %d out of %d --- %s", s.Completed, s.Total, outcome)
			}
		}),
		opts.Reporter,
	}

	driver, err := pipeline.NewDriver(pipeline.Config[F, Detection]{
		Name:    "detect",
		Source:  src,
		Workers: opts.Workers,
		Op: func(ctx context.Context, frame F) (Detection, error) {
			return det.Detect(ctx, frame, board)
		},
		Sink:         collector,
		Reporter:     reporter,
		Total:        opts.Total,
		ReleaseFrame: opts.Release,
		Gate:         opts.Gate,
	})
	if err != nil {
		return nil, pipeline.Summary{}, err
	}

	summary, err := driver.Run(ctx)
	if err != nil {
		return nil, summary, fmt.Errorf("chessboard detection failed: %w", err)
	}

	set := NewDetectionSet(board, opts.Width, opts.Height)
	set.Source = opts.Source
	set.Step = opts.Step
	set.Planned = opts.Total
	for i, d := range collector.Items() {
		set.Add(collector.Indices()[i], d.Points)
	}

	logging.Info("Pattern found in %d of %d sampled frames (%s)", set.Len(), summary.Frames, summary.Duration.Round(time.Millisecond))
	return set, summary, nil
}

// Calibrate solves intrinsics from a detection set. Each detection is paired
// with its own copy of the board's object points.
func Calibrate(ctx context.Context, set *DetectionSet, solver Solver) (Parameters, error) {
	if set == nil || set.Len() == 0 {
		return Parameters{}, ErrNoDetections
	}
	if err := ctx.Err(); err != nil {
		return Parameters{}, err
	}
	if set.Width <= 0 || set.Height <= 0 {
		return Parameters{}, fmt.Errorf("invalid frame size %dx%d", set.Width, set.Height)
	}

	want := set.Board.Corners()
	for i, pts := range set.Points {
		if len(pts) != want {
			return Parameters{}, fmt.Errorf("detection %d has %d corners, board %s needs %d", i, len(pts), set.Board, want)
		}
	}

	logging.Info("Calibrating from %d detections (%dx%d frames)", set.Len(), set.Width, set.Height)
	params, err := solver.Solve(ctx, set.ObjectPoints(), set.Points, set.Width, set.Height)
	if err != nil {
		return Parameters{}, fmt.Errorf("calibration solver failed: %w", err)
	}
	logging.Debug("Solved parameters: %s", params)
	return params, nil
}

// UndistortOptions configures UndistortVideo.
type UndistortOptions[F any] struct {
	Workers  int
	Total    int
	Reporter pipeline.Reporter

	// Release frees input frames after undistortion and output frames after
	// they are written.
	Release func(F)
	// Gate may hold back the next batch. See pipeline.Config.
	Gate func(ctx context.Context) error
}

// UndistortVideo undistorts every frame of src and writes the results to out
// in stream order. out is closed when UndistortVideo returns.
func UndistortVideo[F any](ctx context.Context, src pipeline.Source[F], out pipeline.FrameWriter[F], u Undistorter[F], opts UndistortOptions[F]) (pipeline.Summary, error) {
	driver, err := pipeline.NewDriver(pipeline.Config[F, F]{
		Name:          "undistort",
		Source:        src,
		Workers:       opts.Workers,
		Op:            u.Undistort,
		Sink:          pipeline.NewStreamer(out),
		Reporter:      opts.Reporter,
		Total:         opts.Total,
		ReleaseFrame:  opts.Release,
		ReleaseResult: opts.Release,
		Gate:          opts.Gate,
	})
	if err != nil {
		return pipeline.Summary{}, err
	}

	summary, err := driver.Run(ctx)
	if err != nil {
		return summary, fmt.Errorf("undistortion failed after %d frames: %w", summary.Frames, err)
	}

	logging.Info("Undistorted %d frames in %s", summary.Frames, summary.Duration.Round(time.Millisecond))
	return summary, nil
}
