package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeDomain    = "Domain / System of Systems"
	typeSystem    = "System / Environment"
	typeSubsystem = "Subsystem"
	typeComponent = "Component / Segment"
	typeSoftware  = "Software CI"
)

func TestTree_CreateAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	radar := f.create(t, "Radar System", typeSystem, nil)
	assert.Equal(t, "urn:assetdna:sys:radar-system", radar.URN)
	assert.Nil(t, radar.ParentID)
	assert.Equal(t, StatusActive, radar.Status)
	assert.Equal(t, "tester", radar.CreatedBy)

	ant := f.create(t, "Antenna/Array", typeComponent, radar)
	assert.Equal(t, "urn:assetdna:comp:antenna-array", ant.URN)
	require.NotNil(t, ant.ParentID)
	assert.Equal(t, radar.ID, *ant.ParentID)

	t.Run("duplicate name under same parent", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "Antenna/Array", AssetTypeID: f.types[typeComponent], ParentID: &radar.ID})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("duplicate root name", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "Radar System", AssetTypeID: f.types[typeSystem]})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("same name under another parent gets disambiguated urn", func(t *testing.T) {
		other := f.create(t, "Sonar System", typeSystem, nil)
		dup := f.create(t, "Antenna/Array", typeComponent, other)
		assert.NotEqual(t, ant.URN, dup.URN)
		assert.True(t, strings.HasPrefix(dup.URN, ant.URN+"-"))
		assert.Len(t, dup.URN, len(ant.URN)+9)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "Ghost", AssetTypeID: "nope"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "Orphan", AssetTypeID: f.types[typeSystem], ParentID: strPtr("nope")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "Odd", AssetTypeID: f.types[typeSystem], Status: "broken"})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := f.tree.CreateAsset(ctx, CreateAssetInput{Name: "  ", AssetTypeID: f.types[typeSystem]})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestTree_MoveRenamesOnClash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "A", typeSystem, nil)
	f.create(t, "B", typeSystem, nil)
	inner := f.create(t, "B", typeSubsystem, a)

	moved, err := f.tree.MoveAsset(ctx, inner.ID, nil, "mover")
	require.NoError(t, err)
	assert.Equal(t, "B (2)", moved.Name)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, inner.URN, moved.URN)
	assert.Equal(t, "mover", moved.UpdatedBy)

	assert.Equal(t, []string{"A", "B", "B (2)"}, f.childNames(t, nil))
	assert.Empty(t, f.childNames(t, &a.ID))
}

func TestTree_MoveContinuesNumberedSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "A", typeSystem, nil)
	f.create(t, "B", typeSystem, nil)
	f.create(t, "B (2)", typeSystem, nil)
	inner := f.create(t, "B (2)", typeSubsystem, a)

	moved, err := f.tree.MoveAsset(ctx, inner.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "B (3)", moved.Name)
}

func TestTree_MoveRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, "Root", typeSystem, nil)
	mid := f.create(t, "Mid", typeSubsystem, root)
	leaf := f.create(t, "Leaf", typeComponent, mid)

	_, err := f.tree.MoveAsset(ctx, root.ID, &leaf.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.MoveAsset(ctx, root.ID, &root.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.MoveAsset(ctx, mid.ID, strPtr("missing"), "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.tree.MoveAsset(ctx, "missing", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)

	// Nothing changed.
	assert.Equal(t, root.ID, *f.reload(t, mid.ID).ParentID)
	assert.Equal(t, mid.ID, *f.reload(t, leaf.ID).ParentID)

	// Moving a leaf up is allowed and keeps the name when free.
	moved, err := f.tree.MoveAsset(ctx, leaf.ID, &root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Leaf", moved.Name)
	assert.Equal(t, root.ID, *moved.ParentID)
}

func TestTree_MoveToSameParentIsNoop(t *testing.T) {
	f := newFixture(t)
	root := f.create(t, "Root", typeSystem, nil)
	child := f.create(t, "Child", typeSubsystem, root)

	moved, err := f.tree.MoveAsset(context.Background(), child.ID, &root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Child", moved.Name)
	assert.Equal(t, child.UpdatedAt.Unix(), moved.UpdatedAt.Unix())
}

func TestTree_CopySubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "P", typeSystem, nil)
	x, err := f.tree.CreateAsset(ctx, CreateAssetInput{
		Name:           "X",
		AssetTypeID:    f.types[typeSubsystem],
		ParentID:       &p.ID,
		Properties:     map[string]any{"site": map[string]any{"rack": "R1"}},
		Tags:           []string{"critical"},
		ExternalID:     "EXT-1",
		ExternalSystem: "OTOBO",
		Actor:          "tester",
	})
	require.NoError(t, err)
	y := f.create(t, "Y", typeSoftware, x)
	z := f.create(t, "Z", typeSoftware, x)

	_, err = f.boms.UploadBOM(ctx, UploadBOMInput{AssetID: y.ID, Version: "1", Document: []byte(`{"components":[{"id":"a","version":"1"}]}`)})
	require.NoError(t, err)

	cp, err := f.tree.CopyAsset(ctx, x.ID, &p.ID, "copier")
	require.NoError(t, err)
	assert.Equal(t, "X (Copy)", cp.Name)
	assert.NotEqual(t, x.ID, cp.ID)
	assert.NotEqual(t, x.URN, cp.URN)
	assert.Equal(t, p.ID, *cp.ParentID)
	assert.Empty(t, cp.ExternalID)
	assert.Equal(t, "OTOBO", cp.ExternalSystem)
	assert.Equal(t, JSONStringSlice{"critical"}, cp.Tags)
	assert.Equal(t, "tester", cp.CreatedBy)
	assert.Equal(t, "tester", cp.UpdatedBy)

	assert.Equal(t, []string{"X", "X (Copy)"}, f.childNames(t, &p.ID))
	assert.Equal(t, []string{"Y", "Z"}, f.childNames(t, &cp.ID))

	copies, err := f.store.GetChildren(ctx, &cp.ID)
	require.NoError(t, err)
	for _, c := range copies {
		assert.NotEqual(t, y.ID, c.ID)
		assert.NotEqual(t, z.ID, c.ID)
		assert.NotEqual(t, y.URN, c.URN)
		assert.NotEqual(t, z.URN, c.URN)
		assert.Equal(t, "tester", c.CreatedBy)
		history, err := f.store.ListSnapshots(ctx, c.ID, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, history, "BOM history must not be copied")
	}

	// Properties are independent of the source.
	_, err = f.tree.UpdateAsset(ctx, x.ID, UpdateAssetInput{Properties: map[string]any{"site": map[string]any{"rack": "R9"}}})
	require.NoError(t, err)
	reloaded := f.reload(t, cp.ID)
	assert.Equal(t, "R1", reloaded.Properties["site"].(map[string]any)["rack"])

	// Originals untouched.
	assert.Equal(t, []string{"Y", "Z"}, f.childNames(t, &x.ID))

	again, err := f.tree.CopyAsset(ctx, x.ID, &p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "X (Copy) (2)", again.Name)
}

func TestTree_CopyToOtherParentKeepsName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "P", typeSystem, nil)
	q := f.create(t, "Q", typeSystem, nil)
	x := f.create(t, "X", typeSubsystem, p)

	cp, err := f.tree.CopyAsset(ctx, x.ID, &q.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "X", cp.Name)

	cp2, err := f.tree.CopyAsset(ctx, x.ID, &q.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "X (2)", cp2.Name)

	root, err := f.tree.CopyAsset(ctx, p.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "P (Copy)", root.Name)
	assert.Equal(t, []string{"X"}, f.childNames(t, &root.ID))
}

func TestTree_CopyRejectsInvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	x := f.create(t, "X", typeSystem, nil)
	y := f.create(t, "Y", typeSubsystem, x)

	_, err := f.tree.CopyAsset(ctx, x.ID, &y.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.CopyAsset(ctx, x.ID, &x.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.CopyAsset(ctx, x.ID, strPtr("missing"), "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.CopyAsset(ctx, "missing", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := f.store.CountAssets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestTree_DeleteAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, "Root", typeSystem, nil)
	mid := f.create(t, "Mid", typeSubsystem, root)
	leaf := f.create(t, "Leaf", typeSoftware, mid)
	keep := f.create(t, "Keep", typeSystem, nil)

	snap, err := f.boms.UploadBOM(ctx, UploadBOMInput{AssetID: leaf.ID, Version: "1", Document: []byte(`{"components":[{"id":"a"},{"id":"b"}]}`)})
	require.NoError(t, err)

	_, err = f.tree.DeleteAsset(ctx, root.ID, false)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	f.reload(t, root.ID)

	deleted, err := f.tree.DeleteAsset(ctx, root.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		a, err := f.store.GetAsset(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, a)
	}
	gone, err := f.store.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	var items int64
	require.NoError(t, f.db.Model(&BOMItem{}).Count(&items).Error)
	assert.Zero(t, items)

	f.reload(t, keep.ID)
	deleted, err = f.tree.DeleteAsset(ctx, keep.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = f.tree.DeleteAsset(ctx, keep.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTree_UpdateAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sys := f.create(t, "Alpha", typeSystem, nil)
	f.create(t, "Beta", typeSystem, nil)

	renamed, err := f.tree.UpdateAsset(ctx, sys.ID, UpdateAssetInput{Name: strPtr("Gamma Ray"), Actor: "editor"})
	require.NoError(t, err)
	assert.Equal(t, "Gamma Ray", renamed.Name)
	assert.Equal(t, "urn:assetdna:sys:gamma-ray", renamed.URN)
	assert.Equal(t, "editor", renamed.UpdatedBy)

	_, err = f.tree.UpdateAsset(ctx, sys.ID, UpdateAssetInput{Name: strPtr("Beta")})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	retyped, err := f.tree.UpdateAsset(ctx, sys.ID, UpdateAssetInput{AssetTypeID: strPtr(f.types[typeSubsystem])})
	require.NoError(t, err)
	assert.Equal(t, "urn:assetdna:subsys:gamma-ray", retyped.URN)

	status := StatusDeprecated
	desc := "retired"
	updated, err := f.tree.UpdateAsset(ctx, sys.ID, UpdateAssetInput{Status: &status, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, StatusDeprecated, updated.Status)
	assert.Equal(t, "retired", updated.Description)
	assert.Equal(t, retyped.URN, updated.URN)

	bad := AssetStatus("melted")
	_, err = f.tree.UpdateAsset(ctx, sys.ID, UpdateAssetInput{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.UpdateAsset(ctx, "missing", UpdateAssetInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTree_DepthGuard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTreeDepth = 2
	f := newFixtureWithConfig(t, cfg)
	ctx := context.Background()

	a := f.create(t, "A", typeSystem, nil)
	b := f.create(t, "B", typeSubsystem, a)
	c := f.create(t, "C", typeComponent, b)
	f.create(t, "D", typeSoftware, c)

	_, err := f.tree.DeleteAsset(ctx, a.ID, true)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.tree.CopyAsset(ctx, a.ID, nil, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)

	count, err := f.store.CountAssets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count, "failed mutations must roll back")

	// Shallow subtrees still work.
	deleted, err := f.tree.DeleteAsset(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestTree_NoCyclesAfterMixedMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "A", typeSystem, nil)
	b := f.create(t, "B", typeSubsystem, a)
	c := f.create(t, "C", typeComponent, b)

	_, err := f.tree.MoveAsset(ctx, c.ID, nil, "")
	require.NoError(t, err)
	_, err = f.tree.MoveAsset(ctx, a.ID, &c.ID, "")
	require.NoError(t, err)
	_, err = f.tree.MoveAsset(ctx, c.ID, &b.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.tree.CopyAsset(ctx, c.ID, nil, "")
	require.NoError(t, err)

	all, err := f.store.ListAssets(ctx, AssetFilter{})
	require.NoError(t, err)
	byID := make(map[string]Asset, len(all))
	for _, asset := range all {
		byID[asset.ID] = asset
	}
	for _, asset := range all {
		seen := map[string]bool{asset.ID: true}
		cur := asset
		for cur.ParentID != nil {
			parent, ok := byID[*cur.ParentID]
			require.True(t, ok)
			require.False(t, seen[parent.ID], "cycle through %s", parent.Name)
			seen[parent.ID] = true
			cur = parent
		}
	}
}

func TestTree_GetTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "uncategorized", typeDomain, nil)
	zulu := f.create(t, "Zulu", typeSystem, nil)
	alpha := f.create(t, "Alpha", typeSystem, nil)
	sub := f.create(t, "Sub", typeSubsystem, alpha)
	leaf := f.create(t, "Leaf", typeSoftware, sub)
	_, err := f.boms.UploadBOM(ctx, UploadBOMInput{AssetID: zulu.ID, Version: "1", Document: []byte(`{"items":[]}`)})
	require.NoError(t, err)

	nodes, err := f.tree.GetTree(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "Alpha", nodes[0].Name)
	assert.Equal(t, "Zulu", nodes[1].Name)
	assert.Equal(t, "uncategorized", nodes[2].Name)
	assert.EqualValues(t, 1, nodes[1].BOMCount)
	require.NotNil(t, nodes[0].AssetType)
	assert.Equal(t, typeSystem, nodes[0].AssetType.Name)

	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, sub.ID, nodes[0].Children[0].ID)
	assert.Empty(t, nodes[0].Children[0].Children, "depth 2 stops above the leaf")

	deep, err := f.tree.GetTree(ctx, &alpha.ID, 5)
	require.NoError(t, err)
	require.Len(t, deep, 1)
	require.Len(t, deep[0].Children, 1)
	assert.Equal(t, leaf.ID, deep[0].Children[0].ID)

	_, err = f.tree.GetTree(ctx, nil, 11)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.tree.GetTree(ctx, strPtr("missing"), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeLookup map[string]bool

func (f fakeLookup) FindByNameAndParent(_ context.Context, name string, _ *string) (*Asset, error) {
	if f[name] {
		return &Asset{Name: name}, nil
	}
	return nil, nil
}

type failingLookup struct{}

func (failingLookup) FindByNameAndParent(context.Context, string, *string) (*Asset, error) {
	return nil, errors.New("db down")
}

func TestNamePolicy(t *testing.T) {
	ctx := context.Background()
	fixed := time.Unix(1700000000, 0)
	p := NamePolicy{MaxAttempts: 2, Now: func() time.Time { return fixed }}

	name, err := p.ResolveUnique(ctx, fakeLookup{}, "N", nil)
	require.NoError(t, err)
	assert.Equal(t, "N", name)

	name, err = p.ResolveUnique(ctx, fakeLookup{"N": true}, "N", nil)
	require.NoError(t, err)
	assert.Equal(t, "N (2)", name)

	name, err = p.ResolveUnique(ctx, fakeLookup{"N (4)": true}, "N (4)", nil)
	require.NoError(t, err)
	assert.Equal(t, "N (5)", name)

	name, err = p.ResolveUnique(ctx, fakeLookup{"N": true, "N (2)": true, "N (3)": true}, "N", nil)
	require.NoError(t, err)
	assert.Equal(t, "N (1700000000)", name)

	name, err = p.ResolveCopyName(ctx, fakeLookup{"N (5)": true}, "N (5)", nil)
	require.NoError(t, err)
	assert.Equal(t, "N (5) (2)", name)

	_, err = p.ResolveCopyName(ctx, fakeLookup{"C": true, "C (2)": true, "C (3)": true}, "C", nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = p.ResolveUnique(ctx, failingLookup{}, "N", nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidOperation))
}

func TestGenerateURN(t *testing.T) {
	tests := []struct {
		prefix, typeName, name, want string
	}{
		{"", typeSystem, "Radar System", "urn:assetdna:sys:radar-system"},
		{"urn:acme", "Hardware CI", "Power/Supply Unit", "urn:acme:hw:power-supply-unit"},
		{"urn:acme", "Unknown Type", "Thing", "urn:acme:asset:thing"},
		{"urn:acme", "Firmware CI", "BIOS", "urn:acme:fw:bios"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateURN(tt.prefix, tt.typeName, tt.name))
	}
}

func TestConstructorsLeaveConfigUntouched(t *testing.T) {
	cfg := &Config{}
	tree := NewTree(nil, cfg, nil)
	boms := NewBOMService(nil, cfg, nil)

	assert.Equal(t, Config{}, *cfg)
	d := DefaultConfig()
	assert.Equal(t, d.URNPrefix, tree.urnPrefix)
	assert.Equal(t, d.MaxTreeDepth, tree.maxDepth)
	assert.Equal(t, d.NameProbeLimit, tree.names.MaxAttempts)
	assert.Equal(t, d.MaxBOMBytes, boms.maxBytes)
}
