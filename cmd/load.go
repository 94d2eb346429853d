package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/config"
	"github.com/sells-group/geoload/internal/pipeline"
	"github.com/sells-group/geoload/internal/provision"
	"github.com/sells-group/geoload/internal/runlog"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Validate and load every GeoJSON file in a directory",
	Long: `Lists the files ending in the configured suffix, validates each feature
collection and writes its features to PostGIS. Files that fail validation or
cannot be written are reported and skipped without affecting the others.

Exits non-zero when any file was rejected or failed.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyLoadFlags(cmd, cfg)

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		log := zap.L().With(zap.String("command", "load"))

		runMigrate, _ := cmd.Flags().GetBool("migrate")
		if runMigrate {
			if err := provision.Migrate(ctx, pool); err != nil {
				return eris.Wrap(err, "load: migrate")
			}
		}

		log.Info("starting load",
			zap.String("dir", cfg.Source.Dir),
			zap.String("suffix", cfg.Source.Suffix),
			zap.String("strategy", cfg.Load.Strategy),
			zap.String("commit_mode", cfg.Load.CommitMode),
			zap.Int("concurrency", cfg.Load.Concurrency),
		)

		runID := uuid.NewString()
		runs := runlog.New(pool)
		logID := startRunLog(ctx, runs, runID, log)

		src := pipeline.DirSource{Dir: cfg.Source.Dir, Suffix: cfg.Source.Suffix}
		driver := pipeline.New(pool, src, newLoader(cfg), pipeline.Options{
			RunID:       runID,
			CommitMode:  pipeline.CommitMode(cfg.Load.CommitMode),
			Concurrency: cfg.Load.Concurrency,
		})

		report, runErr := driver.Run(ctx)
		finishRunLog(context.WithoutCancel(ctx), runs, logID, report, runErr, log)

		if report != nil {
			printSummary(cmd.OutOrStdout(), report)

			reportPath, _ := cmd.Flags().GetString("report")
			if reportPath != "" {
				if err := report.WriteFile(reportPath); err != nil {
					return err
				}
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "load")
		}

		if report.Failed() {
			return eris.Errorf("load: %d of %d files not loaded",
				report.Totals.Rejected+report.Totals.Failed, report.Totals.Files)
		}
		return nil
	},
}

func init() {
	addLoadFlags(loadCmd)
	rootCmd.AddCommand(loadCmd)
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().String("dir", "", "directory holding the input files (default: source.dir)")
	cmd.Flags().String("suffix", "", "file name suffix of input files (default: source.suffix)")
	cmd.Flags().String("strategy", "", "write strategy: insert or copy (default: load.strategy)")
	cmd.Flags().String("commit-mode", "", "transaction layout: run or file (default: load.commit_mode)")
	cmd.Flags().Int("concurrency", 0, "files loaded in parallel, file commit mode only (default: load.concurrency)")
	cmd.Flags().String("report", "", "write a per-file report to this .json, .yaml or .yml path")
	cmd.Flags().Bool("migrate", true, "apply pending migrations before loading")
}

// applyLoadFlags copies explicitly set flags over the loaded configuration.
func applyLoadFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("dir") {
		c.Source.Dir, _ = f.GetString("dir")
	}
	if f.Changed("suffix") {
		c.Source.Suffix, _ = f.GetString("suffix")
	}
	if f.Changed("strategy") {
		c.Load.Strategy, _ = f.GetString("strategy")
	}
	if f.Changed("commit-mode") {
		c.Load.CommitMode, _ = f.GetString("commit-mode")
	}
	if f.Changed("concurrency") {
		c.Load.Concurrency, _ = f.GetInt("concurrency")
	}
}

// startRunLog records the run and warns when the directory was already
// loaded in full. The run log is advisory: failures only warn.
func startRunLog(ctx context.Context, runs *runlog.RunLog, runID string, log *zap.Logger) int64 {
	last, err := runs.Last(ctx, cfg.Source.Dir)
	if err != nil {
		log.Warn("read run log", zap.Error(err))
	} else if last != nil {
		log.Warn("directory was loaded before, loading it again duplicates its features",
			zap.Time("last_complete_run", *last))
	}

	id, err := runs.Start(ctx, runID, cfg.Source.Dir)
	if err != nil {
		log.Warn("record run start", zap.Error(err))
		return 0
	}
	return id
}

func finishRunLog(ctx context.Context, runs *runlog.RunLog, id int64, report *pipeline.Report, runErr error, log *zap.Logger) {
	if id == 0 {
		return
	}

	var err error
	if runErr != nil || report == nil {
		msg := "run did not produce a report"
		if runErr != nil {
			msg = runErr.Error()
		}
		err = runs.Fail(ctx, id, msg)
	} else {
		err = runs.Complete(ctx, id, runlog.Result{
			Files:    report.Totals.Files,
			Loaded:   report.Totals.Loaded,
			Rejected: report.Totals.Rejected,
			Failed:   report.Totals.Failed,
			Rows:     report.Totals.Rows,
			Report:   report,
		})
	}
	if err != nil {
		log.Warn("record run outcome", zap.Error(err))
	}
}

// printSummary writes one line per file followed by the totals.
func printSummary(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%-40s %-9s %8s %8s %10s  %s\n",
		"File", "Status", "Features", "Rows", "Duration", "Fault")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, f := range r.Files {
		fault := ""
		if f.Fault != "" {
			fault = fmt.Sprintf("%s (%s): %s", f.Fault, f.Category, f.Reason)
		}
		fmt.Fprintf(w, "%-40s %-9s %8d %8d %8dms  %s\n",
			f.File, f.Status, f.Features, f.Rows, f.DurationMs, fault)
	}

	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "%d files: %d loaded, %d rejected, %d failed, %d rows written (run %s)\n",
		r.Totals.Files, r.Totals.Loaded, r.Totals.Rejected, r.Totals.Failed, r.Totals.Rows, r.RunID)
}
