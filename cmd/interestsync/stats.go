package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"interestsync/internal/config"
	"interestsync/internal/reconcile"
)

func statsCmd() *cobra.Command {
	var subject string
	var object string
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show interest counts, or list interests when a filter is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, subject, object, reconcile.Status(status), limit)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Applicant id to filter")
	cmd.Flags().StringVar(&object, "object", "", "Proposal id to filter")
	cmd.Flags().StringVar(&status, "status", "", "Status to filter (pendiente or aceptado)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of interests to list")
	return cmd
}

func runStats(cmd *cobra.Command, subject, object string, status reconcile.Status, limit int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch status {
	case "", reconcile.StatusPending, reconcile.StatusAccepted:
	default:
		return fmt.Errorf("unknown status %q: expected %s or %s", status, reconcile.StatusPending, reconcile.StatusAccepted)
	}

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	if subject == "" && object == "" && status == "" {
		summary, err := reconcile.Summarize(ctx, db, cfg.Collections.Interests)
		if err != nil {
			return err
		}
		printSummary(out, summary)
		return nil
	}

	interests, err := reconcile.ListInterests(ctx, db, cfg.Collections.Interests, subject, object, status, limit)
	if err != nil {
		return err
	}
	if len(interests) == 0 {
		fmt.Fprintln(out, "No interests found.")
		return nil
	}
	for _, interest := range interests {
		fmt.Fprintf(out, "%s -> %s \"%s\" (%s) [%s]\n",
			interest.SubjectID, interest.ObjectID, interest.DisplayTitle, interest.DisplayName, interest.Status)
	}
	return nil
}
