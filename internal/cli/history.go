package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/secondary"
	"github.com/example/mobi2epub/internal/wire"
)

// HistoryCmd returns the run history command.
func HistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded conversion runs",
		Long: `List recent conversion runs, or the per-file outcomes of one run.

Run history is recorded only when --history-db (or MOBI2EPUB_HISTORY_DB) is set.

Examples:
  mobi2epub history --history-db ~/.local/share/mobi2epub/history.db
  mobi2epub history --limit 5
  mobi2epub history --run 3f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := wire.HistoryRepository()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if runID != "" {
				run, err := repo.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				printRun(out, run)
				return nil
			}

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the outcomes of one run")

	return cmd
}

func printRuns(out io.Writer, runs []*secondary.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tPROCESSED\tOK\tSKIPPED\tFAILED\tRESULT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Processed, r.Total,
			r.Succeeded, r.Skipped, r.Failed,
			runResult(r),
		)
	}
	w.Flush()
}

func printRun(out io.Writer, r *secondary.RunRecord) {
	fmt.Fprintf(out, "Run:      %s\n", r.ID)
	fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Finished: %s\n", r.FinishedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Result:   %s (%d converted, %d skipped, %d failed, processed %d/%d)\n",
		runResult(r), r.Succeeded, r.Skipped, r.Failed, r.Processed, r.Total)
	fmt.Fprintln(out)

	if len(r.Outcomes) == 0 {
		fmt.Fprintln(out, "No files processed.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tSOURCE\tOUTPUT")
	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", o.Seq, o.Status, o.Source, o.OutputPath)
	}
	w.Flush()

	for _, o := range r.Outcomes {
		if o.Detail != "" && o.Status != string(conversion.StatusSuccess) {
			fmt.Fprintf(out, "\n%s:\n%s\n", o.Source, o.Detail)
		}
	}
}

func runResult(r *secondary.RunRecord) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Failed > 0:
		return "failures"
	default:
		return "ok"
	}
}
