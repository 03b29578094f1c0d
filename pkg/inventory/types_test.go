package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAssetTypes(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	ctx := context.Background()

	// Seeding twice leaves the catalog unchanged.
	require.NoError(t, store.SeedAssetTypes(ctx))

	seeded, err := store.ListAssetTypes(ctx)
	require.NoError(t, err)
	want := DefaultAssetTypes()
	require.Len(t, seeded, len(want))

	byName := make(map[string]AssetType, len(seeded))
	for _, at := range seeded {
		byName[at.Name] = at
	}
	for _, w := range want {
		got, ok := byName[w.Name]
		require.True(t, ok, "missing asset type %q", w.Name)
		assert.Equal(t, w.Level, got.Level, w.Name)
		assert.Equal(t, w.CanHaveBOM, got.CanHaveBOM, w.Name)
		assert.Equal(t, w.Description, got.Description, w.Name)
	}
	assert.False(t, byName["Domain / System of Systems"].CanHaveBOM)
}
