package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"video-calib/internal/history"
	"video-calib/internal/logging"
	"video-calib/internal/memory"
	"video-calib/internal/metrics"
	"video-calib/internal/pipeline"
	"video-calib/internal/progress"
	"video-calib/internal/startup"
	"video-calib/internal/status"
)

// env holds what every processing command shares: the resolved
// configuration, the memory gate, the run tracker and the optional history
// ledger and status server.
type env struct {
	command   string
	cfg       *startup.Config
	monitor   *memory.Monitor
	tracker   *progress.Tracker
	history   *history.DB
	collector *metrics.Collector
	stopHTTP  context.CancelFunc
	started   time.Time
}

// setup loads the configuration for command and starts the background
// services. The returned env must be closed.
func setup(ctx context.Context, command string, opts startup.Options) (*env, error) {
	started := time.Now()

	cfg, err := startup.Load(command, opts)
	if err != nil {
		return nil, err
	}

	startup.LogSection("RUNTIME")
	memory.ConfigureFromEnv()
	metrics.InitializeMetrics(startup.Version, startup.Commit)
	pipeline.SetObserver(metrics.NewPipelineObserver())

	e := &env{
		command: command,
		cfg:     cfg,
		monitor: memory.NewMonitor(memory.DefaultConfig()),
		tracker: progress.NewTracker(),
		started: started,
	}
	e.monitor.Start()

	// An untyped nil keeps the collector and the server from seeing a
	// non-nil interface around a nil *history.DB.
	var stats metrics.StatsProvider
	var runs status.RunStore
	if cfg.HistoryPath != "" {
		dbStart := time.Now()
		db, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			logging.Warn("  Run history disabled: %v", err)
		} else {
			startup.LogHistoryInit(cfg.HistoryPath, time.Since(dbStart))
			e.history = db
			stats = db
			runs = db
		}
	}

	e.collector = metrics.NewCollector(stats, 0)
	e.collector.Start()

	if cfg.StatusAddr != "" {
		srv := status.New(e.tracker, runs, startup.Version)
		srvCtx, stop := context.WithCancel(ctx)
		e.stopHTTP = stop
		go func() {
			if err := srv.ListenAndServe(srvCtx, cfg.StatusAddr); err != nil {
				logging.Error("Status server error: %v", err)
			}
		}()
		startup.LogStatusServer(cfg.StatusAddr)
	}

	return e, nil
}

// Close stops the background services and logs the end of the command.
func (e *env) Close(err error) {
	if e.stopHTTP != nil {
		e.stopHTTP()
	}
	e.monitor.Stop()
	e.collector.Stop()
	if e.history != nil {
		if cerr := e.history.Close(); cerr != nil {
			logging.Warn("Failed to close history database: %v", cerr)
		}
	}
	startup.LogRunComplete(e.command, time.Since(e.started), err)
}

// begin starts tracking a run over input and returns its id.
func (e *env) begin(ctx context.Context, command, input string) string {
	var id string
	if e.history != nil {
		var err error
		if id, err = e.history.BeginRun(ctx, command, input, e.cfg.Workers); err != nil {
			logging.Warn("Failed to record run start: %v", err)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	e.tracker.Begin(id, command, input)
	return id
}

// finish records the outcome of run id.
func (e *env) finish(ctx context.Context, id string, out history.Outcome) {
	e.tracker.End(out.Err)
	if e.history == nil {
		return
	}
	if err := e.history.FinishRun(ctx, id, out); err != nil && !errors.Is(err, history.ErrNotFound) {
		logging.Warn("Failed to record run %s: %v", id, err)
	}
}

// stage returns the reporter for one pipeline run: the console reporter
// plus the tracker behind the status server. The console reporter must be
// finished after the run.
func (e *env) stage(name, description string, total int) (pipeline.Reporter, progress.Finisher) {
	e.tracker.Stage(name, total)
	console := progress.ForConsole(os.Stderr, description, total)
	return pipeline.MultiReporter{console, e.tracker}, console
}

func finishConsole(f progress.Finisher) {
	if err := f.Finish(); err != nil {
		logging.Debug("progress reporter: %v", err)
	}
}

// countVideo records a processed video under command.
func countVideo(command string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.VideosProcessedTotal.WithLabelValues(command, result).Inc()
}
