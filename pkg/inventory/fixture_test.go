package inventory

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB creates an in-memory SQLite DB with the inventory tables migrated
// and asset types seeded. A single connection keeps every query on the same
// in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormStore(db)
	require.NoError(t, store.AutoMigrate())
	require.NoError(t, store.SeedAssetTypes(context.Background()))
	return db
}

type fixture struct {
	db       *gorm.DB
	store    *GormStore
	tree     *Tree
	boms     *BOMService
	importer *Importer
	types    map[string]string
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *Config) *fixture {
	t.Helper()
	db := newTestDB(t)
	store := NewGormStore(db)
	types, err := store.ListAssetTypes(context.Background())
	require.NoError(t, err)
	byName := make(map[string]string, len(types))
	for _, at := range types {
		byName[at.Name] = at.ID
	}
	tree := NewTree(store, cfg, nil)
	return &fixture{
		db:       db,
		store:    store,
		tree:     tree,
		boms:     NewBOMService(store, cfg, nil),
		importer: NewImporter(tree, store),
		types:    byName,
	}
}

// create adds an asset of typeName under parent (nil for a root).
func (f *fixture) create(t *testing.T, name, typeName string, parent *Asset) *Asset {
	t.Helper()
	typeID, ok := f.types[typeName]
	require.True(t, ok, "unknown asset type %q", typeName)
	in := CreateAssetInput{Name: name, AssetTypeID: typeID, Actor: "tester"}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	asset, err := f.tree.CreateAsset(context.Background(), in)
	require.NoError(t, err)
	return asset
}

func (f *fixture) reload(t *testing.T, id string) *Asset {
	t.Helper()
	asset, err := f.store.GetAsset(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, asset)
	return asset
}

func (f *fixture) childNames(t *testing.T, parentID *string) []string {
	t.Helper()
	children, err := f.store.GetChildren(context.Background(), parentID)
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	return names
}

func strPtr(s string) *string { return &s }
