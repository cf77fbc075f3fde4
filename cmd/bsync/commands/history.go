package commands

import (
	"errors"
	"fmt"
	"time"

	"blobsync/pkg/journal"
	"blobsync/pkg/report"

	"github.com/spf13/cobra"
)

func newHistoryCmd(st *state) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded batch runs",
		Long: `List the most recent batch runs from the journal, or with --run the
failed items of one run. Requires journal.driver (sqlite or postgres).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := st.settings
			if s.Journal.Driver == "" || s.Journal.Driver == "none" {
				return errors.New("journal is disabled (set journal.driver to sqlite or postgres)")
			}

			// history 不需要连接存储后端
			db, err := journal.Open(ctx, journal.Config{Driver: s.Journal.Driver, DSN: s.Journal.DSN})
			if err != nil {
				return err
			}
			defer db.Close()
			repo := journal.NewRepository(db)
			out := cmd.OutOrStdout()

			runID, _ := cmd.Flags().GetUint("run")
			if runID == 0 {
				limit, _ := cmd.Flags().GetInt("limit")
				runs, err := repo.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet.")
					return nil
				}
				report.PrintRuns(out, runs)
				return nil
			}

			run, err := repo.GetRun(ctx, runID)
			if errors.Is(err, journal.ErrRunNotFound) {
				return &ExitError{Code: ExitNotFound, Err: err}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "🧾 Run %d: %s on %s, started %s\n", run.ID, run.Command, run.Container,
				run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "   took %s, %d item(s), %d failed\n",
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond), run.Items, run.Failed)
			}
			failed, err := repo.FailedTransfers(ctx, run.ID)
			if err != nil {
				return err
			}
			if len(failed) == 0 {
				fmt.Fprintln(out, "✅ No failed items.")
				return nil
			}
			report.PrintTransfers(out, failed)
			return nil
		},
	}
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().Uint("run", 0, "show the failed items of this run")
	return historyCmd
}
