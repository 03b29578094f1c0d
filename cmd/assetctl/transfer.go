package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newImportCmd(c *cli) *cobra.Command {
	var format, key string
	var wait bool
	var pollInterval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Queue a bulk asset import from a JSON or YAML file",
		Long: `Queue a bulk asset import. The file holds an array of rows with name,
asset_type and optional parent_name; rows are created by a background job.
With --wait the command polls the job until it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			if format == "" {
				format = formatFromPath(args[0])
			}

			header := http.Header{}
			header.Set("Content-Type", "application/"+format)
			if key != "" {
				header.Set("Idempotency-Key", key)
			}
			client := c.client()
			var job map[string]any
			path := withQuery("/api/v1/jobs/import", url.Values{"format": {format}})
			if err := client.sendRaw(cmd.Context(), path, data, header, &job); err != nil {
				return fmt.Errorf("failed to queue import: %w", err)
			}

			if wait {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				if job, err = waitForJob(ctx, client, extractValue(job, "id"), pollInterval); err != nil {
					return err
				}
			}
			return c.printJob(job)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Document format: json or yaml (from the file extension when unset)")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Reuse the active job queued with this key")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Polling period with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum wait with --wait")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func waitForJob(ctx context.Context, client *registryClient, id string, interval time.Duration) (map[string]any, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var job map[string]any
		if err := client.getJSON(ctx, "/api/v1/jobs/import/"+url.PathEscape(id), &job); err != nil {
			return nil, fmt.Errorf("failed to poll job %s: %w", id, err)
		}
		switch extractValue(job, "state") {
		case "succeeded", "failed", "canceled":
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *cli) printJob(job map[string]any) error {
	if c.structured() {
		return c.printOutput(job)
	}
	printTable(c.out, []string{"ID", "State", "Rows", "Imported", "Failed", "Message"},
		rowsOf([]map[string]any{job}, "id", "state", "totalRows", "importedRows", "failedRows", "message"))
	errs := toMapSlice(job["rowErrors"])
	if len(errs) > 0 {
		fmt.Fprintln(c.out)
		printTable(c.out, []string{"Row", "Name", "Error"}, rowsOf(errs, "row", "name", "error"))
	}
	return nil
}

func newExportCmd(c *cli) *cobra.Command {
	var format, file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all assets as JSON or YAML import rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := c.client().getBytes(cmd.Context(), withQuery("/api/v1/export", url.Values{"format": {format}}))
			if err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}
			if file == "" {
				_, err = c.out.Write(data)
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Fprintf(c.out, "Exported assets to %s\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Export format: json or yaml")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel import jobs",
	}

	var state, requestedBy string
	list := &cobra.Command{
		Use:   "list",
		Short: "List import jobs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			setIf(q, "state", state)
			setIf(q, "requestedBy", requestedBy)
			var result map[string]any
			if err := c.client().getJSON(cmd.Context(), withQuery("/api/v1/jobs/import", q), &result); err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			printTable(c.out, []string{"ID", "State", "Requested By", "Requested At", "Imported", "Failed"},
				rowsOf(toMapSlice(result["jobs"]), "id", "state", "requestedBy", "requestedAt", "importedRows", "failedRows"))
			return nil
		},
	}
	list.Flags().StringVar(&state, "state", "", "Filter by state (queued, running, succeeded, failed, canceled)")
	list.Flags().StringVar(&requestedBy, "requested-by", "", "Filter by requesting user")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an import job with its row errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job map[string]any
			if err := c.client().getJSON(cmd.Context(), "/api/v1/jobs/import/"+url.PathEscape(args[0]), &job); err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			return c.printJob(job)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/jobs/import/" + url.PathEscape(args[0]) + "/cancel"
			if err := c.client().sendJSON(cmd.Context(), http.MethodPost, path, nil, nil); err != nil {
				return fmt.Errorf("failed to cancel job: %w", err)
			}
			fmt.Fprintf(c.out, "Canceled job %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, get, cancel)
	return cmd
}
