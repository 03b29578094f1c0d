package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newBOMCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bom",
		Short: "Upload, inspect and compare BOM snapshots",
	}
	cmd.AddCommand(
		newBOMUploadCmd(c),
		newBOMHistoryCmd(c),
		newBOMGetCmd(c),
		newBOMDeleteCmd(c),
		newBOMDiffCmd(c),
	)
	return cmd
}

func bomPath(assetID string, rest ...string) string {
	p := "/api/v1/assets/" + url.PathEscape(assetID) + "/bom"
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

func newBOMUploadCmd(c *cli) *cobra.Command {
	var version, bomType, source string
	cmd := &cobra.Command{
		Use:   "upload <asset-id> <file>",
		Short: "Upload a CycloneDX, SPDX or custom BOM document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read BOM file: %w", err)
			}
			q := url.Values{}
			setIf(q, "version", version)
			setIf(q, "bom_type", bomType)
			setIf(q, "source", source)

			header := http.Header{}
			header.Set("Content-Type", "application/json")
			var snapshot map[string]any
			if err := c.client().sendRaw(cmd.Context(), withQuery(bomPath(args[0]), q), data, header, &snapshot); err != nil {
				return fmt.Errorf("failed to upload BOM: %w", err)
			}
			if c.structured() {
				return c.printOutput(snapshot)
			}
			printTable(c.out, []string{"ID", "Version", "Format", "Components", "Changes"},
				rowsOf([]map[string]any{snapshot}, "id", "version", "format", "totalComponents", "changeSummary"))
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "Snapshot version label (generated when unset)")
	cmd.Flags().StringVar(&bomType, "type", "", "BOM type, e.g. SBOM or HBOM")
	cmd.Flags().StringVar(&source, "source", "", "Where the document came from")
	return cmd
}

func newBOMHistoryCmd(c *cli) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history <asset-id>",
		Short: "List BOM snapshots of an asset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			var result map[string]any
			if err := c.client().getJSON(cmd.Context(), withQuery(bomPath(args[0], "history"), q), &result); err != nil {
				return fmt.Errorf("failed to list BOM history: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			printTable(c.out, []string{"ID", "Version", "Date", "Components", "Vulns", "Changes"},
				rowsOf(toMapSlice(result["items"]), "id", "version", "date", "totalComponents", "totalVulnerabilities", "changeSummary"))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of snapshots")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of snapshots to skip")
	return cmd
}

func newBOMGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <asset-id> <bom-id>",
		Short: "Show a snapshot with its components",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail map[string]any
			if err := c.client().getJSON(cmd.Context(), bomPath(args[0], args[1]), &detail); err != nil {
				return fmt.Errorf("failed to get BOM: %w", err)
			}
			if c.structured() {
				return c.printOutput(detail)
			}
			printTable(c.out, []string{"Component", "Name", "Version", "License"},
				rowsOf(toMapSlice(detail["components"]), "id", "name", "version", "license"))
			return nil
		},
	}
}

func newBOMDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <asset-id> <bom-id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().sendJSON(cmd.Context(), http.MethodDelete, bomPath(args[0], args[1]), nil, nil); err != nil {
				return fmt.Errorf("failed to delete BOM: %w", err)
			}
			fmt.Fprintf(c.out, "Deleted BOM snapshot %s\n", args[1])
			return nil
		},
	}
}

func newBOMDiffCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <current-bom-id> <previous-bom-id>",
		Short: "Compare the components of two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"current": {args[0]}, "previous": {args[1]}}
			var diff map[string]any
			if err := c.client().getJSON(cmd.Context(), withQuery("/api/v1/bom/diff", q), &diff); err != nil {
				return fmt.Errorf("failed to diff BOMs: %w", err)
			}
			if c.structured() {
				return c.printOutput(diff)
			}
			printTable(c.out, []string{"Change", "Count", "Components"}, [][]string{
				{"added", extractValue(diff, "added"), truncate(extractValue(diff, "addedIds"), 80)},
				{"removed", extractValue(diff, "removed"), truncate(extractValue(diff, "removedIds"), 80)},
				{"updated", extractValue(diff, "updated"), truncate(extractValue(diff, "updatedIds"), 80)},
			})
			return nil
		},
	}
}
