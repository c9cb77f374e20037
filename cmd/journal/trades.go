package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradejournal/journal-engine/internal/account"
)

func newTradesCmd(opts *rootOptions) *cobra.Command {
	var ticker string

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List trades and their current strategy",
		Long: `List every trade, latest expiration first, with the strategy its open legs
form.

Examples:
  journal trades
  journal trades --ticker AAPL --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrades(cmd, opts, ticker)
		},
	}

	cmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Only show this ticker")
	cmd.SilenceUsage = true
	return cmd
}

func runTrades(cmd *cobra.Command, opts *rootOptions, ticker string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	journal, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer journal.Close()

	now := journal.Account.Now()
	summaries := []account.TradeSummary{}
	for _, t := range journal.Account.Trades() {
		if ticker != "" && t.Ticker() != strings.ToUpper(ticker) {
			continue
		}
		summaries = append(summaries, account.Summarize(t, now))
	}

	if opts.jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(out, "No trades recorded")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%-18s  %-8s  %-24s  %6s  %9s\n", "Trade", "State", "Strategy", "Events", "Open Legs")
	_, _ = fmt.Fprintf(out, "%s\n", strings.Repeat("-", 73))
	for _, s := range summaries {
		_, _ = fmt.Fprintf(out, "%-18s  %-8s  %-24s  %6d  %9d\n", s.ID, s.State, s.Strategy, s.EventCount, s.OpenLegs)
	}
	return nil
}
