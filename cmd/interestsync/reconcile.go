package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"interestsync/internal/config"
	"interestsync/internal/lock"
	"interestsync/internal/reconcile"
)

func reconcileCmd() *cobra.Command {
	var options reconcile.Options
	var summary bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Derive missing interest records from like events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, options, summary)
		},
	}
	cmd.Flags().BoolVar(&options.DryRun, "dry-run", false, "Report what would be created without writing")
	cmd.Flags().BoolVar(&options.StrictLookups, "strict-lookups", false, "Skip events whose proposal or owner lookup fails instead of using placeholders")
	cmd.Flags().BoolVar(&summary, "summary", true, "Print interest counts by status after the pass")
	return cmd
}

func runReconcile(cmd *cobra.Command, options reconcile.Options, summary bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := slog.Default()
	options.Logger = logger

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	locker, client, err := lock.FromConfig(cfg.Lock)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	} else {
		logger.Debug("no redis address configured, running without a lock")
	}

	driver := reconcile.NewDriver(db, cfg, options)
	var result reconcile.Result
	err = lock.WithLock(ctx, locker, func(ctx context.Context) error {
		var runErr error
		result, runErr = driver.Run(ctx)
		return runErr
	})

	if errors.Is(err, lock.ErrLocked) {
		return err
	}
	printResult(out, result, options.DryRun)
	if err != nil {
		return err
	}

	// Skipped events are reported above and retried by the next run.
	if summary {
		counts, err := driver.Summarize(ctx)
		if err != nil {
			logger.Warn("could not summarize interests", "error", err)
			return nil
		}
		printSummary(out, counts)
	}
	return nil
}

func printResult(out io.Writer, result reconcile.Result, dryRun bool) {
	if dryRun {
		fmt.Fprintln(out, "Reconciliation dry run complete.")
	} else {
		fmt.Fprintln(out, "Reconciliation complete.")
	}
	fmt.Fprintf(out, "  Created:   %d\n", result.Created)
	fmt.Fprintf(out, "  Skipped:   %d (existing %d, failed %d)\n", result.Skipped, result.Existing, result.Failed)
	fmt.Fprintf(out, "  Processed: %d\n", result.TotalProcessed)

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", item)
		}
	}
}

func printSummary(out io.Writer, summary reconcile.Summary) {
	fmt.Fprintln(out, "\nInterests:")
	fmt.Fprintf(out, "  Total:    %d\n", summary.Total)
	fmt.Fprintf(out, "  Pending:  %d\n", summary.Pending)
	fmt.Fprintf(out, "  Accepted: %d\n", summary.Accepted)
	if summary.Other > 0 {
		fmt.Fprintf(out, "  Other:    %d\n", summary.Other)
	}
}
