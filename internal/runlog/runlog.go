// Package runlog records load runs in geoload.load_runs so operators can
// see what past runs did without keeping their report files.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoload/internal/db"
)

// Run statuses.
const (
	StatusRunning    = "running"
	StatusComplete   = "complete"    // every file loaded
	StatusWithFaults = "with_faults" // the run finished but some files did not load
	StatusFailed     = "failed"      // the run itself stopped
)

// Entry is a row of geoload.load_runs.
type Entry struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	SourceDir   string     `json:"source_dir"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Files       int        `json:"files"`
	Loaded      int        `json:"loaded"`
	Rejected    int        `json:"rejected"`
	Failed      int        `json:"failed"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
}

// Result holds the outcome of a finished run, passed to Complete.
type Result struct {
	Files    int
	Loaded   int
	Rejected int
	Failed   int
	Rows     int64
	Report   any // stored as JSON
}

// RunLog reads and writes geoload.load_runs.
type RunLog struct {
	pool db.Pool
}

// New creates a RunLog backed by pool.
func New(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a run and returns its row ID.
func (l *RunLog) Start(ctx context.Context, runID, sourceDir string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO geoload.load_runs (run_id, source_dir, status, started_at)
		 VALUES ($1, $2, $3, now()) RETURNING id`,
		runID, sourceDir, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start run %s", runID)
	}
	return id, nil
}

// Complete marks a run as finished with its totals.
func (l *RunLog) Complete(ctx context.Context, id int64, r Result) error {
	var reportJSON []byte
	if r.Report != nil {
		var err error
		reportJSON, err = json.Marshal(r.Report)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal report")
		}
	}

	status := StatusComplete
	if r.Rejected > 0 || r.Failed > 0 {
		status = StatusWithFaults
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE geoload.load_runs
		 SET status = $1, completed_at = now(), files = $2, loaded = $3,
		     rejected = $4, failed = $5, rows_written = $6, report = $7
		 WHERE id = $8`,
		status, r.Files, r.Loaded, r.Rejected, r.Failed, r.Rows, reportJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", id)
	}
	return nil
}

// Fail marks a run as stopped by errMsg.
func (l *RunLog) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE geoload.load_runs
		 SET status = $1, completed_at = now(), error = $2
		 WHERE id = $3`,
		StatusFailed, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", id)
	}
	return nil
}

// Last returns the started_at of the most recent run from sourceDir that
// loaded every file, or nil if there is none.
func (l *RunLog) Last(ctx context.Context, sourceDir string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM geoload.load_runs
		 WHERE source_dir = $1 AND status = $2
		 ORDER BY started_at DESC LIMIT 1`,
		sourceDir, StatusComplete,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last run for %s", sourceDir)
	}
	return &t, nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, run_id::text, source_dir, status, started_at, completed_at,
		        files, loaded, rejected, failed, rows_written, error
		 FROM geoload.load_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		if err := rows.Scan(&e.ID, &e.RunID, &e.SourceDir, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.Files, &e.Loaded, &e.Rejected, &e.Failed, &e.Rows, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
