package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const copySuffix = " (Copy)"

// urnAttempts bounds how often a colliding URN is re-disambiguated.
const urnAttempts = 5

// Tree performs create, move, copy, update and delete on the asset
// hierarchy. Every mutation runs in a single store transaction.
type Tree struct {
	store     Store
	names     NamePolicy
	urnPrefix string
	maxDepth  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewTree creates a Tree. A nil cfg uses DefaultConfig.
func NewTree(store Store, cfg *Config, logger *slog.Logger) *Tree {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := *cfg
	c.applyDefaults()
	return &Tree{
		store:     store,
		names:     NamePolicy{MaxAttempts: c.NameProbeLimit, Now: time.Now, Logger: logger},
		urnPrefix: c.URNPrefix,
		maxDepth:  c.MaxTreeDepth,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateAssetInput describes a new asset.
type CreateAssetInput struct {
	Name           string
	Description    string
	AssetTypeID    string
	ParentID       *string
	Properties     map[string]any
	Tags           []string
	Status         AssetStatus
	LifecycleStage string
	ExternalID     string
	ExternalSystem string
	Version        string
	Actor          string
}

// UpdateAssetInput carries the fields to change; nil fields are left as is.
type UpdateAssetInput struct {
	Name           *string
	Description    *string
	AssetTypeID    *string
	Properties     map[string]any
	Tags           []string
	Status         *AssetStatus
	LifecycleStage *string
	ExternalID     *string
	ExternalSystem *string
	Version        *string
	Actor          string
}

// GetAsset returns the asset with the given id or ErrNotFound.
func (t *Tree) GetAsset(ctx context.Context, id string) (*Asset, error) {
	asset, err := t.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, notFound("asset", id)
	}
	return asset, nil
}

// ListAssets returns assets matching filter.
func (t *Tree) ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error) {
	return t.store.ListAssets(ctx, filter)
}

// ListAssetTypes returns the seeded asset types.
func (t *Tree) ListAssetTypes(ctx context.Context) ([]AssetType, error) {
	return t.store.ListAssetTypes(ctx)
}

// CreateAsset inserts a new asset under in.ParentID.
func (t *Tree) CreateAsset(ctx context.Context, in CreateAssetInput) (_ *Asset, err error) {
	defer func(start time.Time) { observeMutation("create", start, err) }(time.Now())

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidf("asset name is required")
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return nil, invalidf("invalid status %q", status)
	}

	var created *Asset
	err = t.store.Transaction(ctx, func(tx Store) error {
		assetType, err := tx.GetAssetType(ctx, in.AssetTypeID)
		if err != nil {
			return err
		}
		if assetType == nil {
			return notFound("asset type", in.AssetTypeID)
		}
		if in.ParentID != nil {
			parent, err := tx.GetAsset(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return notFound("parent asset", *in.ParentID)
			}
		}
		clash, err := tx.FindByNameAndParent(ctx, name, in.ParentID)
		if err != nil {
			return err
		}
		if clash != nil {
			return invalidf("an asset named %q already exists under this parent", name)
		}
		urn, err := t.uniqueURN(ctx, tx, assetType.Name, name)
		if err != nil {
			return err
		}

		now := t.now().UTC()
		asset := &Asset{
			ID:             uuid.NewString(),
			URN:            urn,
			Name:           name,
			Description:    in.Description,
			AssetTypeID:    assetType.ID,
			ParentID:       cloneID(in.ParentID),
			Properties:     cloneProperties(JSONAny(in.Properties)),
			Tags:           cloneTags(in.Tags),
			Status:         status,
			LifecycleStage: in.LifecycleStage,
			ExternalID:     in.ExternalID,
			ExternalSystem: in.ExternalSystem,
			Version:        in.Version,
			CreatedAt:      now,
			UpdatedAt:      now,
			CreatedBy:      in.Actor,
			UpdatedBy:      in.Actor,
		}
		if err := tx.InsertAsset(ctx, asset); err != nil {
			return classifyWrite("create asset", err)
		}
		created = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.Info("asset created", "id", created.ID, "urn", created.URN, "actor", in.Actor)
	return created, nil
}

// MoveAsset reparents an asset. A nil newParentID moves it to the root
// level. When the destination already holds a sibling with the same name the
// moved asset is renamed with a numbered suffix. The URN is not changed.
func (t *Tree) MoveAsset(ctx context.Context, id string, newParentID *string, actor string) (_ *Asset, err error) {
	defer func(start time.Time) { observeMutation("move", start, err) }(time.Now())

	var moved *Asset
	err = t.store.Transaction(ctx, func(tx Store) error {
		asset, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if asset == nil {
			return notFound("asset", id)
		}
		if newParentID != nil {
			parent, err := tx.GetAsset(ctx, *newParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return notFound("parent asset", *newParentID)
			}
			cyclic, err := t.isDescendantOrSelf(ctx, tx, id, *newParentID)
			if err != nil {
				return err
			}
			if cyclic {
				return invalidf("cannot move asset %q into itself or one of its descendants", asset.Name)
			}
		}
		if sameParent(asset.ParentID, newParentID) {
			moved = asset
			return nil
		}

		name, err := t.names.ResolveUnique(ctx, tx, asset.Name, newParentID)
		if err != nil {
			return err
		}
		if name != asset.Name {
			t.logger.Info("renaming moved asset to avoid sibling clash", "id", id, "from", asset.Name, "to", name)
		}
		asset.Name = name
		asset.ParentID = cloneID(newParentID)
		asset.UpdatedAt = t.now().UTC()
		asset.UpdatedBy = actor
		if err := tx.SaveAsset(ctx, asset); err != nil {
			return classifyWrite("move asset", err)
		}
		moved = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

type copyFrame struct {
	source   Asset
	parentID *string
	depth    int
}

// CopyAsset deep-copies the subtree rooted at id under newParentID and
// returns the new root. Copies keep the source's attribution fields; actor
// is only logged. BOM history is not copied.
func (t *Tree) CopyAsset(ctx context.Context, id string, newParentID *string, actor string) (_ *Asset, err error) {
	defer func(start time.Time) { observeMutation("copy", start, err) }(time.Now())

	var root *Asset
	copied := 0
	err = t.store.Transaction(ctx, func(tx Store) error {
		source, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if source == nil {
			return notFound("asset", id)
		}
		if newParentID != nil {
			parent, err := tx.GetAsset(ctx, *newParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return invalidf("target parent %q does not exist", *newParentID)
			}
			cyclic, err := t.isDescendantOrSelf(ctx, tx, id, *newParentID)
			if err != nil {
				return err
			}
			if cyclic {
				return invalidf("cannot copy asset %q into itself or one of its descendants", source.Name)
			}
		}

		typeNames := make(map[string]string)
		now := t.now().UTC()
		stack := []copyFrame{{source: *source, parentID: cloneID(newParentID)}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.depth > t.maxDepth {
				return invalidf("subtree exceeds maximum depth %d", t.maxDepth)
			}

			candidate := f.source.Name
			if f.depth == 0 && sameParent(source.ParentID, newParentID) {
				candidate += copySuffix
			}
			name, err := t.names.ResolveCopyName(ctx, tx, candidate, f.parentID)
			if err != nil {
				return err
			}
			typeName, err := t.typeName(ctx, tx, typeNames, f.source.AssetTypeID)
			if err != nil {
				return err
			}
			urn, err := t.uniqueURN(ctx, tx, typeName, name)
			if err != nil {
				return err
			}

			dup := &Asset{
				ID:             uuid.NewString(),
				URN:            urn,
				Name:           name,
				Description:    f.source.Description,
				AssetTypeID:    f.source.AssetTypeID,
				ParentID:       f.parentID,
				Properties:     cloneProperties(f.source.Properties),
				Tags:           cloneTags(f.source.Tags),
				Status:         f.source.Status,
				LifecycleStage: f.source.LifecycleStage,
				ExternalSystem: f.source.ExternalSystem,
				Version:        f.source.Version,
				CreatedAt:      now,
				UpdatedAt:      now,
				CreatedBy:      f.source.CreatedBy,
				UpdatedBy:      f.source.UpdatedBy,
			}
			if err := tx.InsertAsset(ctx, dup); err != nil {
				return classifyWrite("copy asset", err)
			}
			copied++
			if f.depth == 0 {
				root = dup
			}

			children, err := tx.GetChildren(ctx, &f.source.ID)
			if err != nil {
				return err
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, copyFrame{source: children[i], parentID: &dup.ID, depth: f.depth + 1})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.Info("asset subtree copied", "source", id, "root", root.ID, "assets", copied, "actor", actor)
	return root, nil
}

// DeleteAsset removes an asset. Assets with children are only removed when
// cascade is set, in which case the whole subtree and every BOM snapshot it
// owns are removed. It returns the number of assets deleted.
func (t *Tree) DeleteAsset(ctx context.Context, id string, cascade bool) (_ int, err error) {
	defer func(start time.Time) { observeMutation("delete", start, err) }(time.Now())

	var deleted int
	err = t.store.Transaction(ctx, func(tx Store) error {
		asset, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if asset == nil {
			return notFound("asset", id)
		}
		hasChildren, err := tx.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren && !cascade {
			return invalidf("asset %q has children; delete with cascade to remove the subtree", asset.Name)
		}
		ids, err := t.subtreeIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteSubtree(ctx, ids); err != nil {
			return err
		}
		deleted = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	t.logger.Info("asset deleted", "id", id, "assets", deleted, "cascade", cascade)
	return deleted, nil
}

// UpdateAsset edits asset fields in place. Renames and type changes must keep
// sibling names unique and regenerate the URN.
func (t *Tree) UpdateAsset(ctx context.Context, id string, in UpdateAssetInput) (_ *Asset, err error) {
	defer func(start time.Time) { observeMutation("update", start, err) }(time.Now())

	var updated *Asset
	err = t.store.Transaction(ctx, func(tx Store) error {
		asset, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if asset == nil {
			return notFound("asset", id)
		}

		regenerate := false
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return invalidf("asset name is required")
			}
			if name != asset.Name {
				clash, err := tx.FindByNameAndParent(ctx, name, asset.ParentID)
				if err != nil {
					return err
				}
				if clash != nil && clash.ID != asset.ID {
					return invalidf("an asset named %q already exists under this parent", name)
				}
				asset.Name = name
				regenerate = true
			}
		}
		if in.AssetTypeID != nil && *in.AssetTypeID != asset.AssetTypeID {
			assetType, err := tx.GetAssetType(ctx, *in.AssetTypeID)
			if err != nil {
				return err
			}
			if assetType == nil {
				return notFound("asset type", *in.AssetTypeID)
			}
			asset.AssetTypeID = assetType.ID
			regenerate = true
		}
		if in.Status != nil {
			if !in.Status.Valid() {
				return invalidf("invalid status %q", *in.Status)
			}
			asset.Status = *in.Status
		}
		if in.Description != nil {
			asset.Description = *in.Description
		}
		if in.Properties != nil {
			asset.Properties = cloneProperties(JSONAny(in.Properties))
		}
		if in.Tags != nil {
			asset.Tags = cloneTags(in.Tags)
		}
		if in.LifecycleStage != nil {
			asset.LifecycleStage = *in.LifecycleStage
		}
		if in.ExternalID != nil {
			asset.ExternalID = *in.ExternalID
		}
		if in.ExternalSystem != nil {
			asset.ExternalSystem = *in.ExternalSystem
		}
		if in.Version != nil {
			asset.Version = *in.Version
		}

		if regenerate {
			typeName, err := t.typeName(ctx, tx, map[string]string{}, asset.AssetTypeID)
			if err != nil {
				return err
			}
			urn := GenerateURN(t.urnPrefix, typeName, asset.Name)
			if urn != asset.URN {
				if urn, err = t.uniqueURNExcept(ctx, tx, urn, asset.ID); err != nil {
					return err
				}
				asset.URN = urn
			}
		}
		asset.UpdatedAt = t.now().UTC()
		asset.UpdatedBy = in.Actor
		if err := tx.SaveAsset(ctx, asset); err != nil {
			return classifyWrite("update asset", err)
		}
		updated = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (t *Tree) typeName(ctx context.Context, tx Store, cache map[string]string, typeID string) (string, error) {
	if name, ok := cache[typeID]; ok {
		return name, nil
	}
	assetType, err := tx.GetAssetType(ctx, typeID)
	if err != nil {
		return "", err
	}
	name := ""
	if assetType != nil {
		name = assetType.Name
	}
	cache[typeID] = name
	return name, nil
}

func (t *Tree) uniqueURN(ctx context.Context, tx Store, typeName, name string) (string, error) {
	return t.uniqueURNExcept(ctx, tx, GenerateURN(t.urnPrefix, typeName, name), "")
}

func (t *Tree) uniqueURNExcept(ctx context.Context, tx Store, urn, selfID string) (string, error) {
	candidate := urn
	for range urnAttempts {
		existing, err := tx.FindByURN(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil || existing.ID == selfID {
			return candidate, nil
		}
		candidate = disambiguateURN(urn)
	}
	return "", invalidf("could not allocate a unique URN for %q", urn)
}

// isDescendantOrSelf reports whether candidateID is rootID or lies in the
// subtree under it. The walk stops as soon as the candidate is seen.
func (t *Tree) isDescendantOrSelf(ctx context.Context, tx Store, rootID, candidateID string) (bool, error) {
	if rootID == candidateID {
		return true, nil
	}
	found := false
	err := t.walk(ctx, tx, rootID, func(id string) bool {
		if id == candidateID {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// subtreeIDs returns rootID followed by every descendant id.
func (t *Tree) subtreeIDs(ctx context.Context, tx Store, rootID string) ([]string, error) {
	ids := []string{rootID}
	err := t.walk(ctx, tx, rootID, func(id string) bool {
		ids = append(ids, id)
		return true
	})
	return ids, err
}

// walk visits every descendant of rootID breadth first until visit returns
// false. Descendants deeper than maxDepth and revisited ids are errors.
func (t *Tree) walk(ctx context.Context, tx Store, rootID string, visit func(id string) bool) error {
	seen := map[string]struct{}{rootID: {}}
	level := []string{rootID}
	for depth := 1; len(level) > 0; depth++ {
		var next []string
		for _, parentID := range level {
			if err := ctx.Err(); err != nil {
				return err
			}
			children, err := tx.ChildIDs(ctx, parentID)
			if err != nil {
				return err
			}
			if len(children) > 0 && depth > t.maxDepth {
				return invalidf("subtree exceeds maximum depth %d", t.maxDepth)
			}
			for _, id := range children {
				if _, dup := seen[id]; dup {
					return fmt.Errorf("asset %s reached twice while walking subtree of %s", id, rootID)
				}
				seen[id] = struct{}{}
				if !visit(id) {
					return nil
				}
				next = append(next, id)
			}
		}
		level = next
	}
	return nil
}
