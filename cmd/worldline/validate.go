package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"worldline/internal/config"
	"worldline/internal/validate"
)

func validateCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run integrity checks against the timeline log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("--world is required")
			}
			return runValidate(worldID)
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	return cmd
}

func runValidate(worldID string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	report, err := validate.Run(ctx, db, worldID)
	if err != nil {
		return err
	}

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out *os.File, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.MarkerID
		if issue.OperationID != "" {
			location = fmt.Sprintf("%s/%s", issue.MarkerID, issue.OperationID)
		}
		if location == "" {
			location = issue.WorldID
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
