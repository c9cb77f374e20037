package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tradejournal/journal-engine/internal/account"
	"github.com/tradejournal/journal-engine/internal/ingest"
	"github.com/tradejournal/journal-engine/internal/report"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var inputs []string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the journal report",
		Long: `Rebuild the account from the store, resolve expired trades, and write a
timestamped JSON report.

Documents passed with --input are included without being recorded.

Examples:
  journal report
  journal report --input pending.json --output ./reports
  journal report --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts, inputs, outputDir)
		},
	}

	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Extra trade-event document (repeatable)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Report directory (default from config)")
	cmd.SilenceUsage = true
	return cmd
}

func runReport(cmd *cobra.Command, opts *rootOptions, inputs []string, outputDir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	journal, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer journal.Close()

	for _, path := range inputs {
		batch, err := journal.Loader.LoadFile(ctx, path)
		if err != nil {
			return err
		}
		if _, err := ingest.Apply(ctx, journal.Account, batch, "file"); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	r := journal.Account.Report(ctx)

	if outputDir == "" {
		outputDir = opts.cfg.Report.Dir
	}
	w, err := report.NewWriter(outputDir, opts.cfg.Report.KeyCase)
	if err != nil {
		return err
	}
	path, err := w.Write(r)
	if err != nil {
		return err
	}

	if opts.jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	printSummary(cmd, r, path)
	return nil
}

func printSummary(cmd *cobra.Command, r *account.Report, path string) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Report written to %s\n\n", path)
	_, _ = fmt.Fprintf(out, "%-28s %d\n", "Closed trades", len(r.ClosedTrades))
	_, _ = fmt.Fprintf(out, "%-28s %d\n", "Open trades", len(r.OpenTrades))
	_, _ = fmt.Fprintf(out, "%-28s %s\n", "Total realized profit", r.TotalRealizedProfit.StringFixed(2))
	_, _ = fmt.Fprintf(out, "%-28s %s\n", "Option profit", orNA(r.TotalOptionProfit, ""))
	_, _ = fmt.Fprintf(out, "%-28s %s\n", "Share profit", r.TotalShareProfit.StringFixed(2))
	_, _ = fmt.Fprintf(out, "%-28s %s\n", "Win rate", orNA(r.WinPercent, "%"))
	_, _ = fmt.Fprintf(out, "%-28s %s\n", "Avg return on collateral", orNA(r.AverageReturnOnCollateral, "%"))
	if r.AverageTradeDuration != nil {
		_, _ = fmt.Fprintf(out, "%-28s %s\n", "Avg trade duration", *r.AverageTradeDuration)
	}
	for _, b := range r.RiskBreaches {
		_, _ = fmt.Fprintf(out, "RISK  %s\n", b)
	}
	for _, e := range r.ResolutionErrors {
		_, _ = fmt.Fprintf(out, "UNRESOLVED  %s\n", e)
	}
}

// orNA renders an optional statistic.
func orNA(v *decimal.Decimal, suffix string) string {
	if v == nil {
		return "n/a"
	}
	return v.StringFixed(2) + suffix
}
