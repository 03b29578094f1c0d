package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newAssetsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assets",
		Aliases: []string{"asset"},
		Short:   "Manage assets in the hierarchy",
	}
	cmd.AddCommand(
		newAssetsListCmd(c),
		newAssetsGetCmd(c),
		newAssetsTreeCmd(c),
		newAssetsCreateCmd(c),
		newAssetsUpdateCmd(c),
		newAssetsDeleteCmd(c),
		newAssetsRelocateCmd(c, "move"),
		newAssetsRelocateCmd(c, "copy"),
	)
	return cmd
}

func newAssetsListCmd(c *cli) *cobra.Command {
	var parent, assetType, status, search string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			setIf(q, "parent_id", parent)
			setIf(q, "asset_type_id", assetType)
			setIf(q, "status", status)
			setIf(q, "search", search)
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}

			var result map[string]any
			if err := c.client().getJSON(cmd.Context(), withQuery("/api/v1/assets", q), &result); err != nil {
				return fmt.Errorf("failed to list assets: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			items := toMapSlice(result["items"])
			printTable(c.out, []string{"ID", "Name", "URN", "Status"}, rowsOf(items, "id", "name", "urn", "status"))
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Only direct children of this asset id")
	cmd.Flags().StringVar(&assetType, "type", "", "Filter by asset type id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, inactive, deprecated)")
	cmd.Flags().StringVar(&search, "search", "", "Substring match on name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of assets")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of assets to skip")
	return cmd
}

func newAssetsGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var asset map[string]any
			if err := c.client().getJSON(cmd.Context(), "/api/v1/assets/"+url.PathEscape(args[0]), &asset); err != nil {
				return fmt.Errorf("failed to get asset: %w", err)
			}
			if c.structured() {
				return c.printOutput(asset)
			}
			printFields(c.out, asset)
			return nil
		},
	}
}

func newAssetsTreeCmd(c *cli) *cobra.Command {
	var parent string
	var depth int

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the asset hierarchy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			setIf(q, "parent_id", parent)
			if depth > 0 {
				q.Set("max_depth", strconv.Itoa(depth))
			}

			var nodes []any
			if err := c.client().getJSON(cmd.Context(), withQuery("/api/v1/assets/tree", q), &nodes); err != nil {
				return fmt.Errorf("failed to get tree: %w", err)
			}
			if c.structured() {
				return c.printOutput(nodes)
			}
			printTree(c.out, toMapSlice(nodes), 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Start below this asset id instead of the roots")
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum depth (1-10, server default when unset)")
	return cmd
}

func printTree(w io.Writer, nodes []map[string]any, level int) {
	for _, n := range nodes {
		line := strings.Repeat("  ", level) + extractValue(n, "name")
		if t := extractValue(n, "assetType.name"); t != "" {
			line += " [" + t + "]"
		}
		if boms := extractValue(n, "bomCount"); boms != "" && boms != "0" {
			line += " (" + boms + " BOMs)"
		}
		fmt.Fprintln(w, line)
		printTree(w, toMapSlice(n["children"]), level+1)
	}
}

type assetFlags struct {
	name           string
	description    string
	assetType      string
	parent         string
	status         string
	lifecycle      string
	externalID     string
	externalSystem string
	version        string
	tags           []string
	properties     []string
}

func (f *assetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Asset name")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.assetType, "type", "", "Asset type id")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (active, inactive, deprecated)")
	cmd.Flags().StringVar(&f.lifecycle, "lifecycle-stage", "", "Lifecycle stage")
	cmd.Flags().StringVar(&f.externalID, "external-id", "", "Identifier in an external system")
	cmd.Flags().StringVar(&f.externalSystem, "external-system", "", "Name of the external system")
	cmd.Flags().StringVar(&f.version, "version", "", "Asset version")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringArrayVar(&f.properties, "property", nil, "Property as key=value (repeatable)")
}

// body returns the request fields whose flags were set.
func (f *assetFlags) body(cmd *cobra.Command) (map[string]any, error) {
	body := map[string]any{}
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			body[key] = value
		}
	}
	set("name", "name", f.name)
	set("description", "description", f.description)
	set("type", "assetTypeId", f.assetType)
	set("status", "status", f.status)
	set("lifecycle-stage", "lifecycleStage", f.lifecycle)
	set("external-id", "externalId", f.externalID)
	set("external-system", "externalSystem", f.externalSystem)
	set("version", "version", f.version)
	if cmd.Flags().Changed("tag") {
		body["tags"] = f.tags
	}
	if len(f.properties) > 0 {
		props, err := parseProperties(f.properties)
		if err != nil {
			return nil, err
		}
		body["properties"] = props
	}
	return body, nil
}

func parseProperties(pairs []string) (map[string]any, error) {
	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", p)
		}
		props[k] = v
	}
	return props, nil
}

func newAssetsCreateCmd(c *cli) *cobra.Command {
	var f assetFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := f.body(cmd)
			if err != nil {
				return err
			}
			if f.parent != "" {
				body["parentId"] = f.parent
			}
			var asset map[string]any
			if err := c.client().sendJSON(cmd.Context(), "POST", "/api/v1/assets", body, &asset); err != nil {
				return fmt.Errorf("failed to create asset: %w", err)
			}
			return c.printAsset(asset)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.parent, "parent", "", "Parent asset id (root when unset)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAssetsUpdateCmd(c *cli) *cobra.Command {
	var f assetFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := f.body(cmd)
			if err != nil {
				return err
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to update")
			}
			var asset map[string]any
			if err := c.client().sendJSON(cmd.Context(), "PATCH", "/api/v1/assets/"+url.PathEscape(args[0]), body, &asset); err != nil {
				return fmt.Errorf("failed to update asset: %w", err)
			}
			return c.printAsset(asset)
		},
	}
	f.register(cmd)
	return cmd
}

func newAssetsDeleteCmd(c *cli) *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/assets/" + url.PathEscape(args[0])
			if cascade {
				path += "?cascade=true"
			}
			var result map[string]any
			if err := c.client().sendJSON(cmd.Context(), "DELETE", path, nil, &result); err != nil {
				return fmt.Errorf("failed to delete asset: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			fmt.Fprintf(c.out, "Deleted %s assets\n", extractValue(result, "deleted"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete all descendants")
	return cmd
}

// newAssetsRelocateCmd builds "move" and "copy", which share a body.
func newAssetsRelocateCmd(c *cli, verb string) *cobra.Command {
	var to string
	method, short := "PUT", "Move an asset (and its subtree) under a new parent"
	if verb == "copy" {
		method, short = "POST", "Copy an asset (and its subtree) under a new parent"
	}

	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"newParentId": nil}
			if to != "" {
				body["newParentId"] = to
			}
			var asset map[string]any
			path := "/api/v1/assets/" + url.PathEscape(args[0]) + "/" + verb
			if err := c.client().sendJSON(cmd.Context(), method, path, body, &asset); err != nil {
				return fmt.Errorf("failed to %s asset: %w", verb, err)
			}
			return c.printAsset(asset)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "New parent asset id (root level when unset)")
	return cmd
}

func (c *cli) printAsset(asset map[string]any) error {
	if c.structured() {
		return c.printOutput(asset)
	}
	printTable(c.out, []string{"ID", "Name", "URN"}, rowsOf([]map[string]any{asset}, "id", "name", "urn"))
	return nil
}

func newTypesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List asset types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result map[string]any
			if err := c.client().getJSON(cmd.Context(), "/api/v1/asset-types", &result); err != nil {
				return fmt.Errorf("failed to list asset types: %w", err)
			}
			if c.structured() {
				return c.printOutput(result)
			}
			items := toMapSlice(result["items"])
			printTable(c.out, []string{"ID", "Name", "Level", "BOM"}, rowsOf(items, "id", "name", "level", "canHaveBom"))
			return nil
		},
	}
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
