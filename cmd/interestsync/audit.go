package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"interestsync/internal/audit"
	"interestsync/internal/config"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report proposal states and data problems that affect interests",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}
	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
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

	report, err := audit.Run(ctx, cfg, db)
	if err != nil {
		return err
	}

	c := report.Counts
	fmt.Fprintf(out, "Proposals: %d\n", c.Total)
	fmt.Fprintf(out, "  Visible (active and approved): %d\n", c.Visible)
	fmt.Fprintf(out, "  Active pending approval:       %d\n", c.ActivePending)
	fmt.Fprintf(out, "  Active rejected:               %d\n", c.ActiveRejected)
	fmt.Fprintf(out, "  Inactive:                      %d\n", c.Inactive)
	fmt.Fprintf(out, "  Without state:                 %d\n", c.NoState)
	fmt.Fprintf(out, "  Without validation:            %d\n", c.NoValidation)
	fmt.Fprintf(out, "  Unified fields:                %d\n", c.Unified)
	fmt.Fprintf(out, "  Legacy fields:                 %d\n", c.Legacy)
	fmt.Fprintf(out, "  With coordinates:              %d\n", c.WithCoordinates)
	printCounts(out, "By state", c.ByState)
	printCounts(out, "By validation", c.ByValidation)

	var errorIssues []audit.Issue
	var warnIssues []audit.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case audit.SeverityError:
			errorIssues = append(errorIssues, issue)
		case audit.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(out, "\nNo issues found.")
		return nil
	}
	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}

	if report.HasErrors() {
		return fmt.Errorf("audit found errors")
	}
	return nil
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "%s:\n", title)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s: %d\n", key, counts[key])
	}
}

func printIssues(out io.Writer, issues []audit.Issue) {
	for _, issue := range issues {
		location := issue.DocumentID
		if issue.Title != "" {
			location = fmt.Sprintf("%s %q", issue.DocumentID, issue.Title)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
