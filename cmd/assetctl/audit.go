package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newAuditCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
	}

	var eventType, actorName, entityID, pageToken string
	var pageSize int
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit events, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			setIf(q, "eventType", eventType)
			setIf(q, "actor", actorName)
			setIf(q, "entityId", entityID)
			setIf(q, "pageToken", pageToken)
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			var result map[string]any
			if err := c.client().getJSON(cmd.Context(), withQuery("/api/v1/audit/events", q), &result); err != nil {
				return fmt.Errorf("failed to list audit events: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			printTable(c.out, []string{"Time", "Event", "Actor", "Entity", "Outcome", "Reason"},
				rowsOf(toMapSlice(result["events"]), "createdAt", "eventType", "actor", "entityId", "outcome", "reason"))
			if next := extractValue(result, "nextPageToken"); next != "" {
				fmt.Fprintf(c.out, "\nNext page: --page-token %s\n", next)
			}
			return nil
		},
	}
	list.Flags().StringVar(&eventType, "event-type", "", "Filter by event type, e.g. asset.move")
	list.Flags().StringVar(&actorName, "actor", "", "Filter by acting user")
	list.Flags().StringVar(&entityID, "entity", "", "Filter by entity id")
	list.Flags().IntVar(&pageSize, "page-size", 0, "Events per page")
	list.Flags().StringVar(&pageToken, "page-token", "", "Continue from a previous page")

	get := &cobra.Command{
		Use:   "get <event-id>",
		Short: "Show one audit event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var event map[string]any
			if err := c.client().getJSON(cmd.Context(), "/api/v1/audit/events/"+url.PathEscape(args[0]), &event); err != nil {
				return fmt.Errorf("failed to get audit event: %w", err)
			}
			if c.structured() {
				return c.printOutput(event)
			}
			printFields(c.out, event)
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
