package alias_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/clustertest"
)

func TestExists_UnboundAliasIsNotAnError(t *testing.T) {
	gw := clustertest.New()
	r := alias.New(gw)

	exists, err := r.Exists(context.Background(), "products")
	require.NoError(t, err)
	assert.False(t, exists)

	indices, err := r.IndicesFor(context.Background(), "products")
	require.NoError(t, err)
	assert.Empty(t, indices)
}

func TestCreate_BindsSingleIndex(t *testing.T) {
	gw := clustertest.New()
	r := alias.New(gw)
	ctx := context.Background()

	_, err := gw.IndexCreate(ctx, "products_blue_20260101000000", nil, "")
	require.NoError(t, err)

	ok, err := r.Create(ctx, "products", "products_blue_20260101000000")
	require.NoError(t, err)
	assert.True(t, ok)

	indices, err := r.IndicesFor(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, []string{"products_blue_20260101000000"}, indices)
}

func TestSwap_NeverRemovesWithoutAdding(t *testing.T) {
	gw := clustertest.New()
	r := alias.New(gw)
	ctx := context.Background()

	_, err := gw.IndexCreate(ctx, "products_blue_20260101000000", nil, "")
	require.NoError(t, err)
	_, err = gw.IndexCreate(ctx, "products_green_20260102000000", nil, "")
	require.NoError(t, err)

	_, err = r.Create(ctx, "products", "products_blue_20260101000000")
	require.NoError(t, err)

	ok, err := r.Swap(ctx, "products", "products_green_20260102000000", false)
	require.NoError(t, err)
	assert.True(t, ok)

	indices, err := r.IndicesFor(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, []string{"products_green_20260102000000"}, indices)
}

func TestSwap_DeleteOldRemovesReplacedIndex(t *testing.T) {
	gw := clustertest.New()
	r := alias.New(gw)
	ctx := context.Background()

	_, err := gw.IndexCreate(ctx, "products_blue_20260101000000", nil, "products")
	require.NoError(t, err)
	_, err = gw.IndexCreate(ctx, "products_green_20260102000000", nil, "")
	require.NoError(t, err)

	ok, err := r.Swap(ctx, "products", "products_green_20260102000000", true)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := gw.IndexExists(ctx, "products_blue_20260101000000")
	require.NoError(t, err)
	assert.False(t, exists, "old index should have been deleted")
}

func TestSortDescending(t *testing.T) {
	names := []string{"products_blue_20260101000000", "products_blue_20260103000000", "products_blue_20260102000000"}
	alias.SortDescending(names)
	assert.Equal(t, []string{
		"products_blue_20260103000000",
		"products_blue_20260102000000",
		"products_blue_20260101000000",
	}, names)
}
