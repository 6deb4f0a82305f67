package deploy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/clustertest"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

func newCoordinator(gw *clustertest.Gateway) *deploy.Coordinator {
	registry := alias.New(gw)
	lc := lifecycle.New(gw, func(string) ([]byte, error) { return []byte(`{}`), nil })
	probe := health.New(gw)
	return deploy.New(gw, registry, lc, probe)
}

func docs(ids ...string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		out[i] = map[string]interface{}{"id": id, "name": "doc-" + id}
	}
	return out
}

// S1 — first deployment under SAFE leaves the alias unbound and the
// status READY_FOR_SWAP with a fresh blue staging index.
func TestDeploy_FirstDeploymentUnderSafe(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	state, err := c.Deploy(ctx, "products-test", docs("A", "B", "C"), deploy.StrategySafe)
	require.NoError(t, err)

	assert.Equal(t, deploy.StatusReadyForSwap, state.Status)
	assert.Equal(t, lifecycle.Blue, state.StagingColor)
	assert.Equal(t, lifecycle.Unknown, state.ActiveColor)
	assert.Empty(t, state.ActiveIndex)

	bound, err := alias.New(gw).Exists(ctx, "products-test")
	require.NoError(t, err)
	assert.False(t, bound, "SAFE deploy must not bind the alias")
	assert.Equal(t, 3, gw.DocCount(state.StagingIndex))
}

// S2 — auto-swap first deployment binds the alias to the new index.
func TestDeploy_AutoSwapFirstDeployment(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	state, err := c.Deploy(ctx, "products-test", docs("A", "B", "C"), deploy.StrategyAutoSwap)
	require.NoError(t, err)

	assert.Equal(t, deploy.StatusCompleted, state.Status)
	assert.Equal(t, lifecycle.Blue, state.ActiveColor)
	assert.Contains(t, state.ActiveIndex, "products-test_blue_")
}

// S3/S4 — blue then green under SAFE, promote, then rollback returns
// to the prior active index.
func TestDeploy_PromoteThenRollback(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	first, err := c.Deploy(ctx, "products-test", docs("A", "B", "C"), deploy.StrategyAutoSwap)
	require.NoError(t, err)
	blueIndex := first.ActiveIndex

	second, err := c.Deploy(ctx, "products-test", docs("D", "E", "F"), deploy.StrategySafe)
	require.NoError(t, err)
	require.Equal(t, lifecycle.Green, second.StagingColor)
	greenIndex := second.StagingIndex

	promoted, err := c.SwapAlias(ctx, "products-test", lifecycle.Green)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Green, promoted.ActiveColor)
	assert.Equal(t, greenIndex, promoted.ActiveIndex)

	rolledBack, err := c.Rollback(ctx, "products-test")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Blue, rolledBack.ActiveColor)
	assert.Equal(t, blueIndex, rolledBack.ActiveIndex)
}

// Invariant 4: color alternation.
func TestDeploy_ColorAlternates(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	first, err := c.Deploy(ctx, "p", docs("A"), deploy.StrategyAutoSwap)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Blue, first.ActiveColor)

	second, err := c.Deploy(ctx, "p", docs("B"), deploy.StrategySafe)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Green, second.StagingColor)
}

// Rollback with only one color ever deployed is rejected NotFound.
func TestRollback_NoPreviousColor(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	_, err := c.Deploy(ctx, "p", docs("A"), deploy.StrategyAutoSwap)
	require.NoError(t, err)

	_, err = c.Rollback(ctx, "p")
	require.Error(t, err)
}

// Invariant 9: cleanup never deletes the active index.
func TestCleanup_NeverDeletesActive(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	_, err := c.Deploy(ctx, "p", docs("A"), deploy.StrategyAutoSwap)
	require.NoError(t, err)

	_, err = c.Deploy(ctx, "p", docs("B"), deploy.StrategyAutoSwap)
	require.NoError(t, err)

	require.NoError(t, c.Cleanup(ctx, "p"))

	// the first deploy's blue index was superseded by the second
	// auto-swap deploy and is eligible for cleanup; only the current
	// active index is guaranteed to survive.
	status, err := c.GetStatus(ctx, "p")
	require.NoError(t, err)
	activeStillExists, err := gw.IndexExists(ctx, status.ActiveIndex)
	require.NoError(t, err)
	assert.True(t, activeStillExists)
}

// Empty documents to deploy still succeeds with a zero-document index.
func TestDeploy_EmptyDocuments(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	state, err := c.Deploy(ctx, "p", nil, deploy.StrategySafe)
	require.NoError(t, err)
	assert.Equal(t, deploy.StatusReadyForSwap, state.Status)
	assert.Equal(t, 0, gw.DocCount(state.StagingIndex))
}

// SwapAlias requires a staging index of the given color to exist.
func TestSwapAlias_RequiresStagingIndex(t *testing.T) {
	gw := clustertest.New()
	c := newCoordinator(gw)
	ctx := context.Background()

	_, err := c.SwapAlias(ctx, "p", lifecycle.Blue)
	require.Error(t, err)
}
