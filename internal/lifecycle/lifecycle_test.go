package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bluedex/internal/clustertest"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

func mapping(string) ([]byte, error) { return []byte(`{"properties":{}}`), nil }

func TestGenerateName_ColorForm(t *testing.T) {
	lc := lifecycle.New(clustertest.New(), mapping)
	name := lc.GenerateName("products", lifecycle.Blue)
	assert.Regexp(t, `^products_blue_\d{14}$`, name)
}

func TestGenerateName_BaseForm(t *testing.T) {
	lc := lifecycle.New(clustertest.New(), mapping)
	name := lc.GenerateName("products", lifecycle.Unknown)
	assert.Regexp(t, `^products_\d{17}$`, name)
}

func TestColorFromName(t *testing.T) {
	assert.Equal(t, lifecycle.Blue, lifecycle.ColorFromName("products_blue_20260101000000"))
	assert.Equal(t, lifecycle.Green, lifecycle.ColorFromName("products_green_20260101000000"))
	assert.Equal(t, lifecycle.Unknown, lifecycle.ColorFromName("products_20260101000000000"))
}

func TestColor_Opposite(t *testing.T) {
	assert.Equal(t, lifecycle.Green, lifecycle.Blue.Opposite())
	assert.Equal(t, lifecycle.Blue, lifecycle.Green.Opposite())
}

func TestCreate_FailsIfExists(t *testing.T) {
	gw := clustertest.New()
	lc := lifecycle.New(gw, mapping)
	ctx := context.Background()

	require.NoError(t, lc.Create(ctx, "products_blue_20260101000000", "products", ""))
	err := lc.Create(ctx, "products_blue_20260101000000", "products", "")
	require.Error(t, err)
}

func TestDelete_ThenNotExists(t *testing.T) {
	gw := clustertest.New()
	lc := lifecycle.New(gw, mapping)
	ctx := context.Background()

	require.NoError(t, lc.Create(ctx, "products_blue_20260101000000", "products", ""))
	require.NoError(t, lc.Delete(ctx, "products_blue_20260101000000"))

	exists, err := lc.Exists(ctx, "products_blue_20260101000000")
	require.NoError(t, err)
	assert.False(t, exists)
}
