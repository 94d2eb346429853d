package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geoload/internal/loader"
	"github.com/sells-group/geoload/internal/runlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many features each source file has loaded",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if n, _ := cmd.Flags().GetInt("runs"); n > 0 {
			entries, err := runlog.New(pool).Recent(ctx, n)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			printRuns(cmd.OutOrStdout(), entries)
			return nil
		}

		rows, err := newLoader(cfg).Status(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		printStatus(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("runs", 0, "show the most recent N load runs instead of per-file counts")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, rows []loader.StatusRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No features loaded yet")
		return
	}

	fmt.Fprintf(w, "%-40s %10s  %s\n", "File", "Features", "Last Loaded")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	var total int64
	for _, r := range rows {
		fmt.Fprintf(w, "%-40s %10d  %s\n", r.Name, r.Features, r.LastLoaded.Format("2006-01-02 15:04"))
		total += r.Features
	}

	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "%-40s %10d\n", "Total", total)
}

func printRuns(w io.Writer, entries []runlog.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No load runs recorded")
		return
	}

	fmt.Fprintf(w, "%-36s %-12s %-16s %6s %7s %8s %6s %8s  %s\n",
		"Run", "Status", "Started", "Files", "Loaded", "Rejected", "Failed", "Rows", "Error")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, e := range entries {
		fmt.Fprintf(w, "%-36s %-12s %-16s %6d %7d %8d %6d %8d  %s\n",
			e.RunID, e.Status, e.StartedAt.Format("2006-01-02 15:04"),
			e.Files, e.Loaded, e.Rejected, e.Failed, e.Rows, e.Error)
	}
}
