package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newReportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "BOM change and registry reports",
	}
	cmd.AddCommand(newReportChangesCmd(c), newReportSummaryCmd(c))
	return cmd
}

func newReportChangesCmd(c *cli) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "changes <asset-id>",
		Short: "Show how an asset's BOM changed over recent months",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if months > 0 {
				q.Set("months", strconv.Itoa(months))
			}
			path := withQuery("/api/v1/reports/assets/"+url.PathEscape(args[0])+"/changes", q)
			var report map[string]any
			if err := c.client().getJSON(cmd.Context(), path, &report); err != nil {
				return fmt.Errorf("failed to get change report: %w", err)
			}
			if c.structured() {
				return c.printOutput(report)
			}
			fmt.Fprintf(c.out, "%s (%s): %s BOM versions, +%s -%s ~%s components\n\n",
				extractValue(report, "assetName"), extractValue(report, "assetUrn"),
				extractValue(report, "totalBomVersions"), extractValue(report, "totalComponentsAdded"),
				extractValue(report, "totalComponentsRemoved"), extractValue(report, "totalComponentsUpdated"))
			printTable(c.out, []string{"Date", "Version", "Components", "Added", "Removed", "Updated", "Vulns"},
				rowsOf(toMapSlice(report["changes"]), "date", "version", "totalComponents",
					"componentsAdded", "componentsRemoved", "componentsUpdated", "vulnerabilities"))
			return nil
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "Window in months (1-24, server default when unset)")
	return cmd
}

func newReportSummaryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show registry-wide counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var summary map[string]any
			if err := c.client().getJSON(cmd.Context(), "/api/v1/reports/summary", &summary); err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}
			if c.structured() {
				return c.printOutput(summary)
			}
			printFields(c.out, summary)
			return nil
		},
	}
}
