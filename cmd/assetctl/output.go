package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

func (c *cli) structured() bool {
	f := c.outputFmt()
	return f == "json" || f == "yaml"
}

func (c *cli) printOutput(v any) error {
	switch c.outputFmt() {
	case "json":
		return printJSON(c.out, v)
	case "yaml":
		return printYAML(c.out, v)
	default:
		return fmt.Errorf("unsupported output format for structured data: %s (use json or yaml)", c.outputFmt())
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	// Convert through JSON to get consistent keys (json tags).
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(m)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	upperHeaders := make([]string, len(headers))
	for i, h := range headers {
		upperHeaders[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upperHeaders, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// printFields renders a flat key/value table of m, keys sorted. Nested
// values are shown as compact JSON.
func printFields(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, truncate(formatValue(m[k]), 80)})
	}
	printTable(w, []string{"Field", "Value"}, rows)
}

// extractValue reads a dot-separated path from decoded JSON.
func extractValue(data map[string]any, path string) string {
	current := any(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[part]
	}
	return formatValue(current)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		strs := make([]string, 0, len(t))
		for _, item := range t {
			strs = append(strs, formatValue(item))
		}
		return strings.Join(strs, ", ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func toMapSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	result := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}

// rowsOf builds table rows from items using the given field paths.
func rowsOf(items []map[string]any, paths ...string) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(paths))
		for i, p := range paths {
			row[i] = extractValue(item, p)
		}
		rows = append(rows, row)
	}
	return rows
}

// truncate shortens a string to max length, appending "..." if truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
