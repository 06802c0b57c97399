package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"interestsync/internal/config"
	"interestsync/internal/normalize"
)

func normalizeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Mirror owner id aliases on proposals and add rating fields to employers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count documents that need changes without writing")
	return cmd
}

func runNormalize(cmd *cobra.Command, dryRun bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	result, err := normalize.Run(ctx, cfg, db, normalize.Options{DryRun: dryRun, Logger: slog.Default()})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Normalization complete.")
	fmt.Fprintf(out, "  Proposals updated: %d of %d\n", result.ProposalsUpdated, result.ProposalsScanned)
	fmt.Fprintf(out, "  Employers updated: %d of %d\n", result.EmployersUpdated, result.EmployersScanned)
	fmt.Fprintf(out, "  Batches committed: %d\n", result.BatchesCommitted)

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", item)
		}
		return fmt.Errorf("normalization completed with errors")
	}
	return nil
}
