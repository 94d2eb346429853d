// Package pipeline drives a load run: it lists the source files and, for
// each one, reads, validates and loads it inside its own failure boundary
// so that one bad file never stops the others.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoload/internal/db"
	"github.com/sells-group/geoload/internal/geojson"
	"github.com/sells-group/geoload/internal/loader"
	"github.com/sells-group/geoload/internal/validate"
)

// CommitMode selects the transaction layout of a run.
type CommitMode string

// Commit modes.
const (
	// CommitRun wraps the whole run in one transaction with a savepoint per
	// file. Nothing is durable until the run commits.
	CommitRun CommitMode = "run"
	// CommitFile commits every file on its own.
	CommitFile CommitMode = "file"
)

// Options configures a Driver.
type Options struct {
	RunID       string // generated when empty
	CommitMode  CommitMode
	Concurrency int // files in flight, CommitFile only
}

// Driver runs the read, validate, load sequence over every source file.
type Driver struct {
	pool   db.Pool
	src    Source
	loader *loader.Loader
	opts   Options
}

// New creates a Driver. Concurrency above one is only honoured in
// CommitFile mode.
func New(pool db.Pool, src Source, ld *loader.Loader, opts Options) *Driver {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.CommitMode == "" {
		opts.CommitMode = CommitRun
	}
	if opts.Concurrency < 1 || opts.CommitMode != CommitFile {
		opts.Concurrency = 1
	}
	return &Driver{pool: pool, src: src, loader: ld, opts: opts}
}

// writeFunc persists one file's validated features.
type writeFunc func(ctx context.Context, name string, features []geojson.Feature) (int64, error)

// Run processes every listed file and returns the per-file report. File
// faults are recorded in the report and never returned. The error is only
// set when the run itself cannot go on: the listing fails, the run
// transaction cannot begin or commit, or ctx is cancelled. The report is
// still returned in that case with the files finished so far.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: d.opts.RunID, StartedAt: time.Now().UTC()}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", report.RunID),
		zap.String("commit_mode", string(d.opts.CommitMode)),
	)

	names, err := d.src.List(ctx)
	if err != nil {
		report.finish(nil)
		return report, eris.Wrap(err, "pipeline: list source files")
	}
	log.Info("run started", zap.Int("files", len(names)))

	results := make([]FileResult, len(names))

	switch d.opts.CommitMode {
	case CommitFile:
		err = d.runPerFile(ctx, names, results)
	default:
		err = d.runSingleTx(ctx, names, results, log)
	}

	report.finish(results)
	if err != nil {
		return report, err
	}

	log.Info("run complete",
		zap.Int("loaded", report.Totals.Loaded),
		zap.Int("rejected", report.Totals.Rejected),
		zap.Int("failed", report.Totals.Failed),
		zap.Int64("rows", report.Totals.Rows),
	)
	return report, nil
}

func (d *Driver) runSingleTx(ctx context.Context, names []string, results []FileResult, log *zap.Logger) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: begin run transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn("rollback run transaction", zap.Error(err))
		}
	}()

	write := func(ctx context.Context, name string, features []geojson.Feature) (int64, error) {
		// A nested Begin is a savepoint.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return 0, &validate.PersistenceFault{Filename: name, Err: eris.Wrap(err, "pipeline: begin savepoint")}
		}
		return d.loadIn(ctx, sp, name, features)
	}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: run cancelled")
		}
		results[i] = d.processFile(ctx, name, write)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "pipeline: commit run transaction")
	}
	committed = true
	return nil
}

func (d *Driver) runPerFile(ctx context.Context, names []string, results []FileResult) error {
	write := func(ctx context.Context, name string, features []geojson.Feature) (int64, error) {
		tx, err := d.pool.Begin(ctx)
		if err != nil {
			return 0, &validate.PersistenceFault{Filename: name, Err: eris.Wrap(err, "pipeline: begin file transaction")}
		}
		return d.loadIn(ctx, tx, name, features)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.processFile(gctx, name, write)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: run cancelled")
	}
	return nil
}

// loadIn loads features inside tx and commits it, or rolls it back on any
// failure. tx is a savepoint in CommitRun mode.
func (d *Driver) loadIn(ctx context.Context, tx pgx.Tx, name string, features []geojson.Feature) (int64, error) {
	n, err := d.loader.Load(ctx, tx, name, features)
	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			zap.L().Warn("rollback file", zap.String("file", name), zap.Error(rbErr))
		}
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &validate.PersistenceFault{Filename: name, Err: eris.Wrap(err, "pipeline: commit file")}
	}
	return n, nil
}

// processFile runs the whole per-file body. Every feature is validated
// before anything is written, so a rejected file writes nothing.
func (d *Driver) processFile(ctx context.Context, name string, write writeFunc) FileResult {
	start := time.Now()
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("file", name))
	log.Info("scanning file")

	result := FileResult{File: name}
	rows, err := d.loadFile(ctx, name, write, &result)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		fault := classify(name, err)
		result.Status = statusOf(fault)
		result.Fault = fault.Kind()
		result.Category = fault.Category()
		result.Reason = fault.Error()

		fields := []zap.Field{zap.String("fault", fault.Kind()), zap.String("reason", fault.Error())}
		if result.Status == StatusFailed {
			log.Error("file failed", fields...)
		} else {
			log.Warn("file rejected", fields...)
		}
		return result
	}

	result.Status = StatusLoaded
	result.Rows = rows
	log.Info("file loaded", zap.Int64("rows", rows), zap.Int64("duration_ms", result.DurationMs))
	return result
}

func (d *Driver) loadFile(ctx context.Context, name string, write writeFunc, result *FileResult) (int64, error) {
	data, err := d.src.Read(ctx, name)
	if err != nil {
		return 0, &validate.SourceUnreadable{Filename: name, Err: err}
	}

	fc, err := validate.Parse(name, data)
	if err != nil {
		return 0, err
	}
	result.Features = len(fc.Features)

	features := make([]geojson.Feature, 0, len(fc.Features))
	for _, raw := range fc.Features {
		f, err := validate.Feature(name, raw)
		if err != nil {
			return 0, err
		}
		features = append(features, f)
	}

	if len(features) == 0 {
		return 0, nil
	}
	return write(ctx, name, features)
}

// classify turns any error from the per-file body into a Fault. Errors
// that are not already faults can only come from the store.
func classify(name string, err error) validate.Fault {
	if f, ok := validate.AsFault(err); ok {
		return f
	}
	return &validate.PersistenceFault{Filename: name, Err: err}
}

func statusOf(f validate.Fault) Status {
	switch f.(type) {
	case *validate.PersistenceFault, *validate.SourceUnreadable:
		return StatusFailed
	case *validate.SchemaViolation,
		*validate.MissingProperties,
		*validate.MissingGeometry,
		*validate.MissingCoordinates,
		*validate.NonNumericCoordinates,
		*validate.InvalidCoordinateDimensions,
		*validate.InvalidGeometryShape:
		return StatusRejected
	default:
		return StatusFailed
	}
}
