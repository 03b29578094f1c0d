package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var health map[string]any
			if err := c.client().getJSON(cmd.Context(), "/healthz", &health); err != nil {
				return fmt.Errorf("server unhealthy: %w", err)
			}
			if c.structured() {
				return c.printOutput(health)
			}
			printTable(c.out, []string{"Check", "Status"}, [][]string{{"Database", extractValue(health, "status")}})
			return nil
		},
	}
}
