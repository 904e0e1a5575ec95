package structural

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbansafe/evacroute/internal/model"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	descs := []model.StructuralDescriptor{
		{EdgeID: 10, YearBuilt: 1972, Construction: model.ConstructionWood, PriorDamage: true},
		{EdgeID: 11, YearBuilt: 2005, Construction: model.ConstructionConcrete},
	}
	n, err := store.UpsertDescriptors(ctx, descs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.GetDescriptor(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1972, got.YearBuilt)
	assert.Equal(t, model.ConstructionWood, got.Construction)
	assert.True(t, got.PriorDamage)

	all, err := store.ListDescriptors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(10), all[0].EdgeID)
	assert.Equal(t, int64(11), all[1].EdgeID)
}

func TestSQLiteStore_GetMissingReturnsNil(t *testing.T) {
	store := openTestSQLite(t)

	got, err := store.GetDescriptor(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	_, err := store.UpsertDescriptors(ctx, []model.StructuralDescriptor{
		{EdgeID: 10, YearBuilt: 1950, Construction: model.ConstructionMasonry},
	})
	require.NoError(t, err)

	_, err = store.UpsertDescriptors(ctx, []model.StructuralDescriptor{
		{EdgeID: 10, YearBuilt: 2010, Construction: model.ConstructionSteel},
	})
	require.NoError(t, err)

	got, err := store.GetDescriptor(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2010, got.YearBuilt)
	assert.Equal(t, model.ConstructionSteel, got.Construction)

	all, err := store.ListDescriptors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_EmptyUpsert(t *testing.T) {
	store := openTestSQLite(t)
	n, err := store.UpsertDescriptors(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
