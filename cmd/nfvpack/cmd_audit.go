package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/cli"
)

var (
	auditLast      int
	auditSince     string
	auditUser      string
	auditOperation string
	auditPackage   string
	auditFailures  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log",
	Long: `View the audit log of validations, packing, onboarding and deletions.

Examples:
  nfvpack audit --last 20
  nfvpack audit --since 24h --failures
  nfvpack audit --operation package.onboard --package vnffg-sample`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			User:        auditUser,
			Operation:   auditOperation,
			Package:     auditPackage,
			FailureOnly: auditFailures,
			Last:        auditLast,
		}
		if auditSince != "" {
			d, err := time.ParseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditSince)
			}
			filter.Since = time.Now().Add(-d)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}
		if jsonOutput {
			return printJSON(events)
		}

		t := cli.NewTable("TIMESTAMP", "USER", "OPERATION", "SOURCE", "PACKAGE", "ISSUES", "STATUS").
			WithEmpty("No audit events found")
		for _, e := range events {
			pkg := "-"
			if e.Package != "" {
				pkg = e.Package + " " + e.Version
			}
			status := cli.Green("ok")
			if !e.Success {
				status = cli.Red("failed")
			}
			t.Row(
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.User,
				e.Operation,
				e.Source,
				pkg,
				fmt.Sprintf("%d/%d", e.Errors, e.Warnings),
				status,
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLast, "last", "n", 50, "Show the newest N events (0 for all)")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "Show events from the last duration (e.g. 24h)")
	auditCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation")
	auditCmd.Flags().StringVar(&auditPackage, "package", "", "Filter by package name")
	auditCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")
	addOutputFlags(auditCmd)
}
