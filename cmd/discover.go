package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/brand-verifier/internal/discover"
	"github.com/sells-group/brand-verifier/internal/table"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find missing brands and sub-brands for each holding",
	Long: "Groups the brands marked as owned in a verify output file by holding, asks the search service " +
		"for missing brands and sub-brands, and writes a holdings table and a sub-brands table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		holdingsOut, _ := cmd.Flags().GetString("holdings-output")
		subBrandsOut, _ := cmd.Flags().GetString("subbrands-output")

		tbl, err := table.Read(input)
		if err != nil {
			return err
		}
		groups, err := discover.GroupOwned(tbl)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Fprintln(os.Stderr, "No owned brands found.")
			return nil
		}

		answerer, err := initAnswerer(cfg)
		if err != nil {
			return err
		}
		res, runErr := discover.New(discoverExecutor(cfg, answerer)).Run(ctx, groups)
		if err := res.Write(holdingsOut, subBrandsOut); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(os.Stdout, "Holdings: %d (failed %d)\n", len(res.Holdings), res.Failed)
		fmt.Fprintf(os.Stdout, "Written: %s, %s\n", holdingsOut, subBrandsOut)
		return nil
	},
}

func init() {
	discoverCmd.Flags().String("input", "", "verify output file (CSV or XLSX)")
	discoverCmd.Flags().String("holdings-output", "holdings_brands.csv", "holdings table output")
	discoverCmd.Flags().String("subbrands-output", "sub_brands.csv", "sub-brands table output")
	_ = discoverCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(discoverCmd)
}
