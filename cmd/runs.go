package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect verification run history",
	Long:  "Commands for listing and viewing verification runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verification runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		withOutcomes, _ := cmd.Flags().GetBool("outcomes")
		view := struct {
			*model.Run
			Outcomes []*model.Outcome `json:"outcomes,omitempty"`
		}{Run: run}
		if withOutcomes {
			if view.Outcomes, err = st.ListOutcomes(ctx, run.ID); err != nil {
				return eris.Wrap(err, "runs show outcomes")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

// -- runs prune --

var runsPruneCmd = &cobra.Command{
	Use:   "prune-cache",
	Short: "Delete expired cached verdicts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteExpiredOutcomes(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "prune cache")
		}
		fmt.Fprintf(os.Stdout, "Deleted %d expired verdicts.\n", n)
		return nil
	},
}

func requireStore(cmd *cobra.Command) (store.Store, error) {
	st, err := initStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history is disabled (store.driver = none)")
	}
	return st, nil
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsShowCmd.Flags().Bool("outcomes", false, "include per-row outcomes")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tMODE\tSTATUS\tROWS\tNOT_OWNED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t------\t----\t---------\t-------\t--------")

	for _, r := range runs {
		dur := ""
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}

		rows, notOwned := "", ""
		if r.Summary != nil {
			rows = fmt.Sprint(r.Summary.Total)
			notOwned = fmt.Sprint(r.Summary.NotOwned)
		}

		input := r.Input
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			input,
			r.Mode,
			r.Status,
			rows,
			notOwned,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
