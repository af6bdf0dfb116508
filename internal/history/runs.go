package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"video-calib/internal/calibration"
	"video-calib/internal/metrics"
)

// Run statuses. The terminal ones match metrics.RunResult.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one recorded command invocation.
type Run struct {
	ID          string                  `json:"id"`
	Command     string                  `json:"command"`
	Input       string                  `json:"input"`
	Fingerprint string                  `json:"fingerprint,omitempty"`
	Status      string                  `json:"status"`
	Workers     int                     `json:"workers"`
	Frames      int                     `json:"frames"`
	Detections  int                     `json:"detections"`
	Params      *calibration.Parameters `json:"params,omitempty"`
	Output      string                  `json:"output,omitempty"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  *time.Time              `json:"finished_at,omitempty"`
}

// Outcome is what FinishRun stores for a completed run.
type Outcome struct {
	Frames     int
	Detections int
	Params     *calibration.Parameters
	Output     string
	Err        error
}

// BeginRun records the start of a run and returns its id. The input file
// is fingerprinted so runs over the same video can be matched later; an
// unreadable input is recorded with an empty fingerprint.
func (d *DB) BeginRun(ctx context.Context, command, input string, workers int) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("begin_run", start, err) }()

	fp, fpErr := Fingerprint(input)
	if fpErr != nil {
		fp = ""
	}

	id := uuid.NewString()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, input, fingerprint, status, workers, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, command, input, fp, StatusRunning, workers, start.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of a run. The status is derived from
// out.Err the same way the pipeline metrics label runs.
func (d *DB) FinishRun(ctx context.Context, id string, out Outcome) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("finish_run", start, err) }()

	var params sql.NullString
	if out.Params != nil {
		var b []byte
		b, err = json.Marshal(out.Params)
		if err != nil {
			return fmt.Errorf("failed to encode parameters: %w", err)
		}
		params = sql.NullString{String: string(b), Valid: true}
	}
	msg := ""
	if out.Err != nil {
		msg = out.Err.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// The caller's context may already be cancelled when a run is
	// interrupted, and the outcome still has to be written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, frames = ?, detections = ?, params = ?, output = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		metrics.RunResult(out.Err), out.Frames, out.Detections, params, out.Output, msg, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return fmt.Errorf("%w: %s", err, id)
	}
	return nil
}

const runColumns = `id, command, input, fingerprint, status, workers, frames, detections, params, output, error, started_at, finished_at`

// GetRun returns a single run.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_run", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var r *Run
	r, err = scanRun(d.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	return r, err
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns at most 50.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_runs", start, err) }()

	if limit <= 0 {
		limit = 50
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r *Run
		r, err = scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	err = rows.Err()
	return runs, err
}

// GetStats implements metrics.StatsProvider. Cancelled runs count as
// failed.
func (d *DB) GetStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_runs", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		stats.TotalRuns += n
		switch status {
		case StatusSuccess:
			stats.SucceededRuns += n
		case StatusError, StatusCancelled:
			stats.FailedRuns += n
		case StatusRunning:
			stats.RunningRuns += n
		}
	}
	err = rows.Err()
	return stats, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r        Run
		params   sql.NullString
		started  int64
		finished sql.NullInt64
	)
	err := s.Scan(&r.ID, &r.Command, &r.Input, &r.Fingerprint, &r.Status, &r.Workers,
		&r.Frames, &r.Detections, &params, &r.Output, &r.Error, &started, &finished)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		r.FinishedAt = &t
	}
	if params.Valid {
		var p calibration.Parameters
		if err := json.Unmarshal([]byte(params.String), &p); err != nil {
			return nil, fmt.Errorf("run %s has unreadable parameters: %w", r.ID, err)
		}
		r.Params = &p
	}
	return &r, nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
