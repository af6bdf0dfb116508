package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"gocv.io/x/gocv"

	"video-calib/internal/calibration"
	"video-calib/internal/history"
	"video-calib/internal/logging"
	"video-calib/internal/metrics"
	"video-calib/internal/preview"
	"video-calib/internal/vision"
	"video-calib/internal/watch"
)

// fallbackFPS is used for the output container when the source does not
// report a frame rate.
const fallbackFPS = 30

func calibrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "calibrate",
		Usage:     "solve camera intrinsics from a chessboard video, then undistort it",
		ArgsUsage: "[video]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "detections",
				Usage: "also save the accepted chessboard detections to this CBOR file",
			},
			&cli.BoolFlag{
				Name:  "preview",
				Usage: "write a before/after JPEG of the first frame next to the output",
			},
		},
		Action: runCalibrate,
	}
}

func undistortCommand() *cli.Command {
	return &cli.Command{
		Name:      "undistort",
		Usage:     "undistort videos with the saved camera intrinsics",
		ArgsUsage: "[video...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "preview",
				Usage: "write a before/after JPEG of the first frame next to each output",
			},
			&cli.StringFlag{
				Name:  "watch",
				Usage: "keep running and undistort videos as they appear in this directory",
			},
			&cli.BoolFlag{
				Name:  "existing",
				Usage: "with --watch, also undistort videos already in the directory",
			},
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "with --watch, wait this long after the last write before reading a video",
				Value: watch.DefaultSettle,
			},
		},
		Action: runUndistort,
	}
}

func solveCommand() *cli.Command {
	return &cli.Command{
		Name:      "solve",
		Usage:     "solve camera intrinsics from a saved detection file",
		ArgsUsage: "<detections.cbor>",
		Action:    runSolve,
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list recorded runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "print one run as JSON",
			},
		},
		Action: runHistory,
	}
}

func runCalibrate(ctx context.Context, cmd *cli.Command) (err error) {
	e, err := setup(ctx, "calibrate", options(cmd))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { e.Close(err) }()

	input, err := e.cfg.CalibrationInput(cmd.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if cmd.Bool("preview") {
		startPreview()
		defer preview.ShutdownVips()
	}

	id := e.begin(ctx, "calibrate", input)
	out := e.calibrate(ctx, input, cmd.String("detections"), cmd.Bool("preview"))
	e.finish(ctx, id, out)
	countVideo("calibrate", out.Err)
	return out.Err
}

// calibrate detects the board on sampled frames of input, solves and saves
// the intrinsics, then undistorts input with them.
func (e *env) calibrate(ctx context.Context, input, detectionsPath string, withPreview bool) history.Outcome {
	var out history.Outcome

	capture, err := vision.OpenCapture(input)
	if err != nil {
		out.Err = err
		return out
	}
	info := capture.Info()
	step := calibration.SampleStep(info.FPS)
	planned := calibration.PlannedSamples(info.FrameCount, step)
	capture.Sample(step, planned)
	logging.Info("Sampling every %d frames of %s (%d samples planned)", step, filepath.Base(input), planned)

	reporter, console := e.stage("detect", "finding pattern", planned)
	set, summary, err := calibration.DetectFrames[*gocv.Mat](ctx, capture, vision.ChessboardDetector{}, calibration.DetectOptions[*gocv.Mat]{
		Board:    e.cfg.Board,
		Workers:  e.cfg.Workers,
		Width:    info.Width,
		Height:   info.Height,
		Source:   input,
		Step:     step,
		Total:    planned,
		Reporter: reporter,
		Release:  vision.Release,
		Gate:     e.monitor.Wait,
	})
	finishConsole(console)
	if cerr := capture.Close(); cerr != nil {
		logging.Debug("failed to close %s: %v", input, cerr)
	}
	out.Frames = summary.Frames
	if err != nil {
		out.Err = err
		return out
	}
	out.Detections = set.Len()
	metrics.CalibrationDetections.Set(float64(set.Len()))

	if detectionsPath != "" {
		if err := calibration.SaveDetections(set, detectionsPath); err != nil {
			out.Err = err
			return out
		}
		logging.Info("Saved %d detections to %s", set.Len(), detectionsPath)
	}

	params, err := e.solveAndSave(ctx, set)
	if err != nil {
		out.Err = err
		return out
	}
	out.Params = &params

	u, err := vision.NewUndistorter(params)
	if err != nil {
		out.Err = err
		return out
	}
	defer u.Close()

	output := e.cfg.CalibrationOutput(input)
	if _, err := e.undistortFile(ctx, input, output, u, withPreview); err != nil {
		out.Err = err
		return out
	}
	out.Output = output
	return out
}

// solveAndSave runs the solver over set and writes the parameter file.
func (e *env) solveAndSave(ctx context.Context, set *calibration.DetectionSet) (calibration.Parameters, error) {
	start := time.Now()
	params, err := calibration.Calibrate(ctx, set, vision.Solver{})
	metrics.CalibrationSolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return calibration.Parameters{}, err
	}

	if err := calibration.Save(params, e.cfg.ParamsPath); err != nil {
		return calibration.Parameters{}, err
	}
	logging.Info("Saved camera intrinsics to %s", e.cfg.ParamsPath)
	logging.Info("  %s", params)
	return params, nil
}

func runUndistort(ctx context.Context, cmd *cli.Command) (err error) {
	inputs := cmd.Args().Slice()
	watchDir := cmd.String("watch")
	if len(inputs) == 0 && watchDir == "" {
		return cli.Exit("no input videos given", exitUsage)
	}

	e, err := setup(ctx, "undistort", options(cmd))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { e.Close(err) }()

	params, err := loadParameters(e.cfg.ParamsPath)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	u, err := vision.NewUndistorter(params)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer u.Close()

	withPreview := cmd.Bool("preview")
	if withPreview {
		startPreview()
		defer preview.ShutdownVips()
	}

	var errs []error
	for _, input := range inputs {
		if ctx.Err() != nil {
			break
		}
		if err := e.undistortTracked(ctx, "undistort", input, u, withPreview); err != nil {
			logging.Error("Failed to undistort %s: %v", input, err)
			errs = append(errs, fmt.Errorf("%s: %w", input, err))
		}
	}

	if watchDir != "" && ctx.Err() == nil {
		logWatching(watchDir)
		err := watch.Watch(ctx, watchDir, watch.Options{
			Settle:   cmd.Duration("settle"),
			Existing: cmd.Bool("existing"),
		}, func(ctx context.Context, path string) error {
			return e.undistortTracked(ctx, "watch", path, u, withPreview)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func logWatching(dir string) {
	logging.Info("")
	logging.Info("Watching %s for new videos (Ctrl+C to stop)", dir)
}

// undistortTracked undistorts input into the result directory as one
// recorded run.
func (e *env) undistortTracked(ctx context.Context, command, input string, u *vision.Undistorter, withPreview bool) error {
	output := e.cfg.UndistortOutput(input)
	id := e.begin(ctx, command, input)

	frames, err := e.undistortFile(ctx, input, output, u, withPreview)
	out := history.Outcome{Frames: frames, Err: err}
	if err == nil {
		out.Output = output
	}
	e.finish(ctx, id, out)
	countVideo(command, err)
	return err
}

// undistortFile writes the undistorted copy of input to output and returns
// the number of frames written.
func (e *env) undistortFile(ctx context.Context, input, output string, u *vision.Undistorter, withPreview bool) (int, error) {
	capture, err := vision.OpenCapture(input)
	if err != nil {
		return 0, err
	}
	defer capture.Close()

	info := capture.Info()
	fps := calibration.NormalizeFrameRate(info.FPS)
	if fps == 0 {
		logging.Warn("%s reports no frame rate, writing at %d fps", filepath.Base(input), fallbackFPS)
		fps = fallbackFPS
	}

	w, err := vision.CreateWriter(output, fps, info.Width, info.Height)
	if err != nil {
		return 0, err
	}

	logging.Info("Undistorting %s -> %s", filepath.Base(input), output)
	reporter, console := e.stage("undistort", "undistorting", info.FrameCount)
	summary, err := calibration.UndistortVideo[*gocv.Mat](ctx, capture, w, u, calibration.UndistortOptions[*gocv.Mat]{
		Workers:  e.cfg.Workers,
		Total:    info.FrameCount,
		Reporter: reporter,
		Release:  vision.Release,
		Gate:     e.monitor.Wait,
	})
	finishConsole(console)
	if err != nil {
		return summary.Frames, err
	}

	if withPreview {
		path := previewPath(output)
		if err := writePreview(ctx, input, u, path); err != nil {
			logging.Warn("Failed to write preview: %v", err)
		} else {
			logging.Info("Preview written to %s", path)
		}
	}
	return summary.Frames, nil
}

// loadParameters reads the parameter file and warns about absent keys.
func loadParameters(path string) (calibration.Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return calibration.Parameters{}, fmt.Errorf("no camera intrinsics at %s (run calibrate first): %w", path, err)
	}
	defer f.Close()

	params, missing, err := calibration.Decode(f)
	if err != nil {
		return calibration.Parameters{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(missing) > 0 {
		logging.Warn("%s has no value for %s, treating as 0", path, strings.Join(missing, ", "))
	}
	logging.Info("Loaded camera intrinsics: %s", params)
	return params, nil
}

func startPreview() {
	if err := preview.InitVips(); err != nil {
		logging.Warn("libvips unavailable, previews use the Go encoder: %v", err)
	}
}

func previewPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_preview.jpg"
}

// writePreview renders the first frame of input before and after
// undistortion.
func writePreview(ctx context.Context, input string, u *vision.Undistorter, path string) error {
	frame, err := vision.FirstFrame(input)
	if err != nil {
		return err
	}
	defer vision.Release(frame)

	fixed, err := u.Undistort(ctx, frame)
	if err != nil {
		return err
	}
	defer vision.Release(fixed)

	before, err := vision.ToImage(frame)
	if err != nil {
		return err
	}
	after, err := vision.ToImage(fixed)
	if err != nil {
		return err
	}
	return preview.WriteFile(path, before, after)
}

func runSolve(ctx context.Context, cmd *cli.Command) (err error) {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("solve needs a detection file", exitUsage)
	}

	e, err := setup(ctx, "solve", options(cmd))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { e.Close(err) }()

	set, err := calibration.LoadDetections(path)
	if err != nil {
		return err
	}
	logging.Info("Loaded %d detections of %s (%s board, %dx%d)", set.Len(), set.Source, set.Board, set.Width, set.Height)

	id := e.begin(ctx, "solve", path)
	out := history.Outcome{Frames: set.Planned, Detections: set.Len()}
	params, err := e.solveAndSave(ctx, set)
	if err == nil {
		out.Params = &params
		out.Output = e.cfg.ParamsPath
	}
	out.Err = err
	e.finish(ctx, id, out)
	return err
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	opts := options(cmd)
	if opts.NoHistory {
		return cli.Exit("run history is disabled", exitUsage)
	}

	e, err := setup(ctx, "history", opts)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer e.Close(nil)
	if e.history == nil {
		return cli.Exit("run history is not available", exitFailure)
	}

	if id := cmd.String("run"); id != "" {
		run, err := e.history.GetRun(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	runs, err := e.history.ListRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return printRuns(os.Stdout, runs)
}

func printRuns(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMAND\tSTATUS\tFRAMES\tDETECTIONS\tSTARTED\tDURATION\tINPUT")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			shortID(r.ID), r.Command, r.Status, r.Frames, r.Detections,
			r.StartedAt.Local().Format(time.DateTime), duration, filepath.Base(r.Input))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
