package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/batch"
	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/store"
	"github.com/sells-group/brand-verifier/internal/table"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify every brand/holding pair of an input file",
	Long: "Reads a CSV or XLSX file with Holding Name (or Main Holding Name) and Brand Name columns, " +
		"verifies each pair and writes the input columns plus the verdict columns to --output.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		parallel, _ := cmd.Flags().GetBool("parallel")
		workers, _ := cmd.Flags().GetInt("workers")
		preset, _ := cmd.Flags().GetString("preset")
		limit, _ := cmd.Flags().GetInt("limit")
		noStore, _ := cmd.Flags().GetBool("no-store")

		if output == "" {
			output = defaultOutputPath(input)
		}
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}

		tbl, err := table.Read(input)
		if err != nil {
			return err
		}
		limitRows(tbl, limit)
		reqs, err := tbl.Requests()
		if err != nil {
			return err
		}

		answerer, err := initAnswerer(cfg)
		if err != nil {
			return err
		}
		verifier, err := buildVerifier(cfg, answerer, preset)
		if err != nil {
			return err
		}

		var st store.Store
		if !noStore {
			if st, err = initStore(ctx, cfg); err != nil {
				return err
			}
			if st != nil {
				defer st.Close() //nolint:errcheck
			}
		}

		var backing batch.Backing
		if st != nil {
			backing = st
		}
		driver := batch.New(verifier, batch.NewCache(backing, cacheTTL(cfg), batch.ForPreset(verifier.Preset())), workers)

		mode := model.RunModeSequential
		if parallel {
			mode = model.RunModeParallel
		}

		res, runErr := verifyTable(ctx, driver, tbl, reqs, output, mode, st, input)
		if res != nil {
			formatSummary(os.Stdout, &res.Summary, output)
		}
		return runErr
	},
}

// verifyTable runs the batch, writes output and records the run when st is
// non-nil.
func verifyTable(ctx context.Context, driver *batch.Driver, tbl *table.Table, reqs []model.VerificationRequest,
	output string, mode model.RunMode, st store.Store, input string) (*batch.Result, error) {
	// the run is recorded even when ctx gets cancelled
	saveCtx := context.WithoutCancel(ctx)
	var run *model.Run
	if st != nil {
		var err error
		if run, err = st.CreateRun(saveCtx, input, output, mode); err != nil {
			return nil, eris.Wrap(err, "create run")
		}
	}

	header := table.OutputHeader(tbl.Header)
	var (
		res    *batch.Result
		runErr error
	)
	switch mode {
	case model.RunModeParallel:
		res, runErr = driver.RunParallel(ctx, reqs, nil)
		if runErr == nil {
			runErr = table.Write(output, header, outputRows(header, tbl, res.Outcomes))
		}
	default:
		res, runErr = writeSequential(ctx, driver, tbl, reqs, header, output)
	}

	if st != nil && run != nil {
		var summary *model.Summary
		if res != nil {
			summary = &res.Summary
			if err := st.SaveOutcomes(saveCtx, run.ID, res.Outcomes); err != nil {
				zap.L().Error("save outcomes failed", zap.String("run_id", run.ID), zap.Error(err))
			}
		}
		if err := st.CompleteRun(saveCtx, run.ID, summary, runErr); err != nil {
			zap.L().Error("complete run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return res, runErr
}

func writeSequential(ctx context.Context, driver *batch.Driver, tbl *table.Table, reqs []model.VerificationRequest,
	header []string, output string) (*batch.Result, error) {
	sink, err := table.NewSink(output, header)
	if err != nil {
		return nil, err
	}
	res, runErr := driver.RunSequential(ctx, reqs, func(i int, o *model.Outcome) error {
		return sink.Append(table.OutputRow(header, tbl.Rows[i], o))
	})
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return res, runErr
}

func outputRows(header []string, tbl *table.Table, outcomes []*model.Outcome) [][]string {
	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		rows[i] = table.OutputRow(header, tbl.Rows[i], o)
	}
	return rows
}

// limitRows keeps the first n data rows; n <= 0 keeps all.
func limitRows(tbl *table.Table, n int) {
	if n > 0 && n < len(tbl.Rows) {
		tbl.Rows = tbl.Rows[:n]
	}
}

// defaultOutputPath derives "<name>_verified<ext>" from the input path.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_verified" + ext
}

// formatSummary writes the batch totals and anomalies to w.
func formatSummary(out io.Writer, s *model.Summary, output string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Errored:\t%d\n", s.Errored)
	_, _ = fmt.Fprintf(w, "Owned:\t%d\n", s.Owned)
	_, _ = fmt.Fprintf(w, "Not owned:\t%d\n", s.NotOwned)
	_, _ = fmt.Fprintf(w, "Needs review:\t%d\n", s.NeedsReview)
	_, _ = fmt.Fprintf(w, "Cache hits:\t%d\n", s.CacheHits)
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", output)
	_ = w.Flush()

	if len(s.Anomalies) > 0 {
		_, _ = fmt.Fprintln(out, "\nBrands not owned by their holding:")
		for _, a := range s.Anomalies {
			_, _ = fmt.Fprintf(out, "  %s / %s\n", a.Holding, a.Brand)
		}
	}
}

func init() {
	verifyCmd.Flags().String("input", "", "input CSV or XLSX file")
	verifyCmd.Flags().String("output", "", "output CSV or XLSX file (default <input>_verified.<ext>)")
	verifyCmd.Flags().Bool("parallel", false, "verify unique pairs on a worker pool")
	verifyCmd.Flags().Int("workers", 0, "parallel workers (default from config, 0 = CPUs)")
	verifyCmd.Flags().String("preset", "", "scoring preset (default from config)")
	verifyCmd.Flags().Int("limit", 0, "verify only the first N rows")
	verifyCmd.Flags().Bool("no-store", false, "skip run history and the verdict cache")
	_ = verifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(verifyCmd)
}
