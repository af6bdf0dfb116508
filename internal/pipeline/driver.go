package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-calib/internal/logging"
)

// Phase is a state of the driver loop.
type Phase int

const (
	// PhaseScanning fills the next batch from the source.
	PhaseScanning Phase = iota
	// PhaseProcessing runs the op over the batch in the pool.
	PhaseProcessing
	// PhaseEmitting hands ordered results to the sink.
	PhaseEmitting
	// PhaseDone is entered when the scheduler returns an empty batch.
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseProcessing:
		return "processing"
	case PhaseEmitting:
		return "emitting"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Config wires a Driver.
type Config[F, R any] struct {
	// Name labels logs and metrics ("detect", "undistort").
	Name string

	Source  Source[F]
	Workers int
	Op      Op[F, R]
	Sink    Sink[R]

	// Reporter receives a State after every finalized slot. Optional.
	Reporter Reporter

	// Total is the planned frame count reported with each State.
	Total int

	// ReleaseFrame is called for every pulled frame once the op is done
	// with it. ReleaseResult is called for every result once the sink has
	// consumed it, or when it is discarded after a fatal error. Optional.
	ReleaseFrame  func(F)
	ReleaseResult func(R)

	// OnPhase is called on every state transition. Optional.
	OnPhase func(Phase)

	// Gate is called before each batch is pulled and may block, for example
	// while memory is under pressure. A non-nil error ends the run. Optional.
	Gate func(ctx context.Context) error
}

// Summary describes a finished run.
type Summary struct {
	Batches  int           `json:"batches"`
	Frames   int           `json:"frames"`
	Accepted int           `json:"accepted"`
	Duration time.Duration `json:"duration"`
}

// Driver runs the scan/process/emit loop until end of stream.
type Driver[F, R any] struct {
	cfg       Config[F, R]
	scheduler *Scheduler[F]
	pool      *Pool[F, R]
	reporter  Reporter
}

// NewDriver creates a Driver from cfg. Batches hold at most cfg.Workers slots.
func NewDriver[F, R any](cfg Config[F, R]) (*Driver[F, R], error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Op == nil {
		return nil, errors.New("pipeline: op is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("pipeline: sink is required")
	}

	pool := NewPool(cfg.Workers, cfg.Op)
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Driver[F, R]{
		cfg:       cfg,
		scheduler: NewScheduler(cfg.Source, pool.Workers()),
		pool:      pool,
		reporter:  reporter,
	}, nil
}

// Run drives the pipeline to completion. The sink is closed before Run
// returns, whether the run succeeded or not. Cancellation of ctx is checked
// between batches; a batch in flight always completes.
func (d *Driver[F, R]) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	observe().ObserveWorkers(d.cfg.Name, d.pool.Workers())
	logging.Debug("[%s] starting with %d workers", d.cfg.Name, d.pool.Workers())

	defer func() {
		if closeErr := d.cfg.Sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s sink: %w", d.cfg.Name, closeErr)
		}
		summary.Duration = time.Since(start)
		observe().ObserveRun(d.cfg.Name, summary, err)
	}()

	for {
		d.enter(PhaseScanning)
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if d.cfg.Gate != nil {
			if err := d.cfg.Gate(ctx); err != nil {
				return summary, err
			}
		}

		batch := d.scheduler.Fill()
		if len(batch) == 0 {
			d.enter(PhaseDone)
			logging.Debug("[%s] end of stream after %d frames", d.cfg.Name, d.scheduler.Pulled())
			return summary, nil
		}

		d.enter(PhaseProcessing)
		processStart := time.Now()
		results, err := d.pool.Run(ctx, batch)
		d.releaseFrames(batch)
		if err != nil {
			d.releaseResults(results)
			return summary, err
		}
		processing := time.Since(processStart)

		d.enter(PhaseEmitting)
		emitStart := time.Now()
		if err := d.emit(results, &summary); err != nil {
			return summary, err
		}
		summary.Batches++

		observe().ObserveBatch(d.cfg.Name, len(batch), processing, time.Since(emitStart))
		logging.Debug("[%s] batch %d: %d frames (first index %d) in %v",
			d.cfg.Name, summary.Batches, len(batch), batch[0].Index, processing)
	}
}

func (d *Driver[F, R]) emit(results []Result[R], summary *Summary) error {
	for i, result := range results {
		status, err := d.cfg.Sink.Accept(result)
		d.releaseResult(result.Value)
		if err != nil {
			d.releaseResults(results[i+1:])
			return fmt.Errorf("%s sink rejected frame %d: %w", d.cfg.Name, result.Index, err)
		}

		summary.Frames++
		if status != StatusSkipped {
			summary.Accepted++
		}

		observe().ObserveSlot(d.cfg.Name, status)
		d.reporter.Report(State{
			Index:     result.Index,
			Completed: result.Index + 1,
			Total:     d.cfg.Total,
			Status:    status,
		})
	}
	return nil
}

func (d *Driver[F, R]) enter(p Phase) {
	if d.cfg.OnPhase != nil {
		d.cfg.OnPhase(p)
	}
}

func (d *Driver[F, R]) releaseFrames(batch Batch[F]) {
	if d.cfg.ReleaseFrame == nil {
		return
	}
	for _, slot := range batch {
		d.cfg.ReleaseFrame(slot.Frame)
	}
}

func (d *Driver[F, R]) releaseResult(value R) {
	if d.cfg.ReleaseResult != nil {
		d.cfg.ReleaseResult(value)
	}
}

func (d *Driver[F, R]) releaseResults(results []Result[R]) {
	for _, r := range results {
		d.releaseResult(r.Value)
	}
}
