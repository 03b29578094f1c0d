package inventory

import (
	"context"
	"strings"
)

const (
	DefaultTreeDepth = 5
	MaxTreeViewDepth = 10
)

// TreeNode is one asset in a tree read, with its type and snapshot count.
type TreeNode struct {
	Asset
	AssetType *AssetType  `json:"assetType,omitempty"`
	BOMCount  int64       `json:"bomCount"`
	Children  []*TreeNode `json:"children"`
}

// GetTree returns the hierarchy below parentID (roots when nil), at most
// maxDepth levels deep. Siblings are ordered by name with any asset named
// "uncategorized" placed last.
func (t *Tree) GetTree(ctx context.Context, parentID *string, maxDepth int) ([]*TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	if maxDepth > MaxTreeViewDepth {
		return nil, invalidf("max depth must be between 1 and %d", MaxTreeViewDepth)
	}
	if parentID != nil {
		parent, err := t.store.GetAsset(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, notFound("asset", *parentID)
		}
	}

	types, err := t.store.ListAssetTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeByID := make(map[string]*AssetType, len(types))
	for i := range types {
		typeByID[types[i].ID] = &types[i]
	}

	roots, err := t.treeLevel(ctx, parentID, typeByID)
	if err != nil {
		return nil, err
	}
	level := roots
	for depth := 1; depth < maxDepth && len(level) > 0; depth++ {
		var next []*TreeNode
		for _, node := range level {
			children, err := t.treeLevel(ctx, &node.ID, typeByID)
			if err != nil {
				return nil, err
			}
			node.Children = children
			next = append(next, children...)
		}
		level = next
	}
	return roots, nil
}

func (t *Tree) treeLevel(ctx context.Context, parentID *string, typeByID map[string]*AssetType) ([]*TreeNode, error) {
	assets, err := t.store.GetChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(assets))
	for i := range assets {
		ids[i] = assets[i].ID
	}
	counts, err := t.store.SnapshotCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	nodes := make([]*TreeNode, 0, len(assets))
	var uncategorized []*TreeNode
	for _, a := range assets {
		node := &TreeNode{Asset: a, AssetType: typeByID[a.AssetTypeID], BOMCount: counts[a.ID], Children: []*TreeNode{}}
		if strings.EqualFold(a.Name, "uncategorized") {
			uncategorized = append(uncategorized, node)
			continue
		}
		nodes = append(nodes, node)
	}
	return append(nodes, uncategorized...), nil
}
