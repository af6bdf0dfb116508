package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"video-calib/internal/calibration"
	"video-calib/internal/logging"
	"video-calib/internal/startup"
	"video-calib/internal/workers"
)

// Exit codes.
const (
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel)

	err := newApp().Run(ctx, os.Args)
	if err == nil {
		return
	}

	// cli.Exit errors are handled inside Run.
	if errors.Is(err, context.Canceled) {
		logging.Warn("Interrupted: %v", err)
		os.Exit(exitCancelled)
	}
	logging.Error("%v", err)
	os.Exit(exitFailure)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "video-calib",
		Usage:   "calibrate a camera from a chessboard video and undistort videos",
		Version: startup.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "calib-dir",
				Usage:   "calibration directory (original_video/, result_video/, parameter file)",
				Sources: cli.EnvVars("CALIB_DIR"),
			},
			&cli.StringFlag{
				Name:    "result-dir",
				Usage:   "output directory of the undistort command",
				Sources: cli.EnvVars("RESULT_DIR"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "frame workers per batch (0 = one per CPU)",
				Sources: cli.EnvVars(workers.EnvOverride),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "status-addr",
				Usage:   "serve progress, run history and metrics on this address",
				Sources: cli.EnvVars("STATUS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "history-db",
				Usage:   "run history database (default <calib-dir>/history.db)",
				Sources: cli.EnvVars("HISTORY_DB"),
			},
			&cli.BoolFlag{
				Name:    "no-history",
				Usage:   "do not record runs",
				Sources: cli.EnvVars("NO_HISTORY"),
			},
			&cli.IntFlag{
				Name:    "board-cols",
				Usage:   "inner corners per chessboard row",
				Value:   calibration.DefaultBoard.Cols,
				Sources: cli.EnvVars("BOARD_COLS"),
			},
			&cli.IntFlag{
				Name:    "board-rows",
				Usage:   "inner corners per chessboard column",
				Value:   calibration.DefaultBoard.Rows,
				Sources: cli.EnvVars("BOARD_ROWS"),
			},
		},
		Before: applyLogLevel,
		Commands: []*cli.Command{
			calibrateCommand(),
			undistortCommand(),
			solveCommand(),
			historyCommand(),
		},
	}
}

func applyLogLevel(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	s := cmd.String("log-level")
	if s == "" {
		return ctx, nil
	}
	level, err := logging.ParseLevel(s)
	if err != nil {
		return ctx, cli.Exit(err.Error(), exitUsage)
	}
	logging.SetLevel(level)
	return ctx, nil
}

func options(cmd *cli.Command) startup.Options {
	return startup.Options{
		CalibDir:   cmd.String("calib-dir"),
		ResultDir:  cmd.String("result-dir"),
		Workers:    int(cmd.Int("workers")),
		Board:      calibration.Board{Cols: int(cmd.Int("board-cols")), Rows: int(cmd.Int("board-rows"))},
		HistoryDB:  cmd.String("history-db"),
		StatusAddr: cmd.String("status-addr"),
		NoHistory:  cmd.Bool("no-history"),
	}
}

// handleShutdown cancels the run on the first SIGINT or SIGTERM. The
// pipeline stops after the batch in flight; a second signal exits at once.
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	startup.LogShutdownInitiated(sig.String())
	cancel()

	sig = <-sigChan
	logging.Error("Received %s again, exiting", sig)
	os.Exit(exitCancelled)
}
