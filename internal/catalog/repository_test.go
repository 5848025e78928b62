package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *catalog.Repository {
	t.Helper()
	repo, err := catalog.NewRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.RunMigrations())
	return repo
}

func TestLookup_ReturnsSeededProducts(t *testing.T) {
	repo := setupTestDB(t)

	infos, err := repo.Lookup(context.Background(), []int64{1, 5, 6, 999})

	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, int64(9_490_000), infos[1].Price)
	assert.Equal(t, []string{"CPU"}, infos[1].CategoryIDs)
	require.NotNil(t, infos[1].StockQuantity)
	assert.Equal(t, 12, *infos[1].StockQuantity)

	assert.Equal(t, []string{"SSD", "STORAGE"}, infos[5].CategoryIDs)
	assert.Equal(t, 0, *infos[5].StockQuantity)
	assert.Nil(t, infos[6].StockQuantity)
}

func TestLookup_Empty(t *testing.T) {
	repo := setupTestDB(t)

	infos, err := repo.Lookup(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRunMigrations_Twice(t *testing.T) {
	repo := setupTestDB(t)
	assert.NoError(t, repo.RunMigrations())
}

func TestSetStock(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SetStock(ctx, 3, domain.IntPtr(7)))
	require.NoError(t, repo.SetStock(ctx, 4, nil))
	assert.ErrorIs(t, repo.SetStock(ctx, 999, domain.IntPtr(1)), domain.ErrNotFound)

	infos, err := repo.Lookup(ctx, []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 7, *infos[3].StockQuantity)
	assert.Nil(t, infos[4].StockQuantity)
}

func TestLookup_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Lookup(ctx, []int64{1})
	assert.Error(t, err)
}
