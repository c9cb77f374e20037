package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradejournal/journal-engine/internal/ingest"
)

// ingestResult is one document's outcome.
type ingestResult struct {
	File string `json:"file"`
	ingest.Result
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Record trade-event documents",
		Long: `Parse trade-event documents and record their executions in the store.

Executions already recorded are skipped, so a document can be ingested again
after it grows.

Examples:
  journal ingest trades/2024-01.json
  journal ingest trades/*.json --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts, args)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func runIngest(cmd *cobra.Command, opts *rootOptions, files []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	journal, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer journal.Close()

	var results []ingestResult
	for _, path := range files {
		batch, err := journal.Loader.LoadFile(ctx, path)
		if err != nil {
			return err
		}
		res, err := ingest.Apply(ctx, journal.Account, batch, "file")
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := ingest.Persist(ctx, journal.Store, batch); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, ingestResult{File: path, Result: res})
	}

	if opts.jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d events, %d share fills recorded, %d already known\n",
			r.File, r.Events, r.Fills, r.Skipped)
	}
	return nil
}
