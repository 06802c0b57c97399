package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"interestsync/internal/approvals"
	"interestsync/internal/config"
	"interestsync/internal/store"
)

func approvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Approve or withdraw the newest proposal",
		Long:  "Only approved proposals are visible to applicants. These commands change the validation state of the most recently created proposal.",
	}
	cmd.AddCommand(transitionCmd("approve-latest", "Approve the newest pending proposal", approvals.ApproveLatest))
	cmd.AddCommand(transitionCmd("reset-latest", "Return the newest approved proposal to pending", approvals.ResetLatest))
	return cmd
}

type transitionFunc func(context.Context, store.Store, *config.ProjectConfig, approvals.Options) (*approvals.Result, error)

func transitionCmd(use, short string, transition transitionFunc) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, transition, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the proposal that would change without writing")
	return cmd
}

func runTransition(cmd *cobra.Command, transition transitionFunc, dryRun bool) error {
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

	result, err := transition(ctx, db, cfg, approvals.Options{DryRun: dryRun, Logger: slog.Default()})
	if errors.Is(err, approvals.ErrNoCandidate) {
		fmt.Fprintln(out, "No matching proposal found; nothing changed.")
		return nil
	}
	if err != nil {
		return err
	}

	p := result.Proposal
	fmt.Fprintln(out, "Proposal:")
	fmt.Fprintf(out, "  ID:      %s\n", p.ID)
	fmt.Fprintf(out, "  Title:   %s\n", p.Title)
	fmt.Fprintf(out, "  Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	if dryRun {
		fmt.Fprintf(out, "\nWould change %s -> %s.\n", result.From, result.To)
	} else {
		fmt.Fprintf(out, "\nChanged %s -> %s.\n", result.From, result.To)
	}

	fmt.Fprintf(out, "\nApproved proposals: %d\n", len(result.Approved))
	for _, approved := range result.Approved {
		fmt.Fprintf(out, "  - %s (%s)\n", approved.Title, approved.ID)
	}
	return nil
}
