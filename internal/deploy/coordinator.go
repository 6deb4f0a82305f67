// Package deploy implements the blue/green deployment state machine:
// color assignment, swap, rollback and cleanup for a single alias,
// composed into one coordinator with no per-alias state of its own.
package deploy

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/cluster"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

// Coordinator enforces the blue/green state machine for every alias it
// is asked about; it carries no per-alias state of its own, deriving
// everything from the Alias Registry and Index Lifecycle on each call.
type Coordinator struct {
	gateway   cluster.Gateway
	registry  *alias.Registry
	lifecycle *lifecycle.Lifecycle
	probe     *health.Probe
	now       func() time.Time
}

// New builds a Coordinator over its collaborators.
func New(gateway cluster.Gateway, registry *alias.Registry, lc *lifecycle.Lifecycle, probe *health.Probe) *Coordinator {
	return &Coordinator{gateway: gateway, registry: registry, lifecycle: lc, probe: probe, now: time.Now}
}

// GetStatus derives the current DeploymentState for aliasName by
// querying the Alias Registry for the active index and the Index
// Lifecycle for every other matching index.
func (c *Coordinator) GetStatus(ctx context.Context, aliasName string) (*State, error) {
	activeIndices, err := c.registry.IndicesFor(ctx, aliasName)
	if err != nil {
		return nil, err
	}

	var activeIndex string
	if len(activeIndices) > 0 {
		activeIndex = activeIndices[0]
	}
	activeColor := lifecycle.ColorFromName(activeIndex)

	allIndices, err := c.gateway.IndexGet(ctx, lifecycle.Pattern(aliasName), true)
	if err != nil {
		return nil, err
	}

	var staging []string
	for _, idx := range allIndices {
		if idx == activeIndex {
			continue
		}
		if lifecycle.ColorFromName(idx) == lifecycle.Unknown {
			log.Warn().Str("alias", aliasName).Str("index", idx).
				Msg("index name does not match the blue/green naming convention, excluding from staging candidates")
			continue
		}
		staging = append(staging, idx)
	}
	alias.SortDescending(staging)

	state := &State{Alias: aliasName, ActiveColor: activeColor, ActiveIndex: activeIndex}
	if activeIndex == "" && len(staging) == 0 {
		state.Status = StatusIdle
		return state, nil
	}
	if len(staging) > 0 {
		state.StagingIndex = staging[0]
		state.StagingColor = lifecycle.ColorFromName(staging[0])
		state.Status = StatusReadyForSwap
	} else if activeIndex != "" {
		state.Status = StatusCompleted
	}
	return state, nil
}

// Deploy creates a new staging index of the opposite color, bulk-loads
// documents into it, validates it, and either swaps automatically
// (AUTO_SWAP) or leaves it READY_FOR_SWAP (SAFE).
func (c *Coordinator) Deploy(ctx context.Context, aliasName string, documents []map[string]interface{}, strategy Strategy) (*State, error) {
	current, err := c.GetStatus(ctx, aliasName)
	if err != nil {
		return nil, err
	}

	targetColor := lifecycle.Blue
	if current.ActiveColor != lifecycle.Unknown {
		targetColor = current.ActiveColor.Opposite()
	}
	targetIndex := c.lifecycle.GenerateName(aliasName, targetColor)

	if err := c.lifecycle.Create(ctx, targetIndex, aliasName, ""); err != nil {
		return nil, err
	}

	ids := make([]string, len(documents))
	now := c.now()
	for i, doc := range documents {
		ids[i] = documentID(doc, targetIndex, i, now)
	}

	_, itemErrors, err := bulkIndexDocuments(ctx, c.gateway, targetIndex, ids, documents)
	if err != nil {
		return c.fail(aliasName, current, targetColor, targetIndex, err), err
	}
	if len(itemErrors) > 0 {
		log.Warn().Str("alias", aliasName).Str("index", targetIndex).Int("failedItems", len(itemErrors)).
			Msg("deploy bulk ingest reported per-item errors; continuing")
	}

	if err := c.probe.WaitReady(ctx, targetIndex, health.WaitOptions{
		Timeout:          5 * time.Minute,
		CheckInterval:    2 * time.Second,
		ExpectedDocCount: int64(len(documents)),
	}); err != nil {
		return c.fail(aliasName, current, targetColor, targetIndex, err), err
	}

	valid, err := c.probe.Validate(ctx, targetIndex)
	if err != nil {
		return c.fail(aliasName, current, targetColor, targetIndex, err), err
	}
	if !valid {
		failErr := apierrors.PreconditionFailedFatal("validation failed for index %q", targetIndex)
		return c.fail(aliasName, current, targetColor, targetIndex, failErr), failErr
	}

	result := &State{
		Alias:          aliasName,
		ActiveColor:    current.ActiveColor,
		ActiveIndex:    current.ActiveIndex,
		StagingColor:   targetColor,
		StagingIndex:   targetIndex,
		Status:         StatusReadyForSwap,
		LastDeployment: c.now(),
		Strategy:       strategy,
	}

	if strategy == StrategyAutoSwap {
		swapped, err := c.SwapAlias(ctx, aliasName, targetColor)
		if err != nil {
			return c.fail(aliasName, current, targetColor, targetIndex, err), err
		}
		return swapped, nil
	}
	return result, nil
}

func (c *Coordinator) fail(aliasName string, current *State, targetColor lifecycle.Color, targetIndex string, err error) *State {
	return &State{
		Alias:          aliasName,
		ActiveColor:    current.ActiveColor,
		ActiveIndex:    current.ActiveIndex,
		StagingColor:   targetColor,
		StagingIndex:   targetIndex,
		Status:         StatusFailed,
		LastDeployment: c.now(),
		Error:          err.Error(),
	}
}

// SwapAlias moves aliasName's active index to its staging index of
// targetColor. It fails with PreconditionFailed if there is no staging
// index, and with Conflict if the staging index is of another color.
func (c *Coordinator) SwapAlias(ctx context.Context, aliasName string, targetColor lifecycle.Color) (*State, error) {
	current, err := c.GetStatus(ctx, aliasName)
	if err != nil {
		return nil, err
	}
	if current.StagingIndex == "" {
		return nil, apierrors.PreconditionFailed("alias %q has no staging index to swap to", aliasName)
	}
	if current.StagingColor != targetColor {
		return nil, apierrors.Conflict("alias %q staging color is %q, not %q", aliasName, current.StagingColor, targetColor)
	}

	acknowledged, err := c.registry.Swap(ctx, aliasName, current.StagingIndex, false)
	if err != nil {
		return nil, err
	}
	if !acknowledged {
		return nil, apierrors.Cluster(nil, "alias swap for %q was not acknowledged", aliasName)
	}

	return &State{
		Alias:          aliasName,
		ActiveColor:    targetColor,
		ActiveIndex:    current.StagingIndex,
		Status:         StatusCompleted,
		LastDeployment: c.now(),
	}, nil
}

// Rollback swaps aliasName back to the most recent index of the
// non-active color. It fails with NotFound if no such index exists.
func (c *Coordinator) Rollback(ctx context.Context, aliasName string) (*State, error) {
	current, err := c.GetStatus(ctx, aliasName)
	if err != nil {
		return nil, err
	}
	if current.ActiveIndex == "" {
		return nil, apierrors.NotFound("alias %q has no active index to roll back from", aliasName)
	}

	previousColor := current.ActiveColor.Opposite()
	candidates, err := c.gateway.IndexGet(ctx, lifecycle.ColorPattern(aliasName, previousColor), true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apierrors.NotFound("alias %q has no previous %q index to roll back to", aliasName, previousColor)
	}
	alias.SortDescending(candidates)
	previousIndex := candidates[0]

	acknowledged, err := c.registry.Swap(ctx, aliasName, previousIndex, false)
	if err != nil {
		return nil, err
	}
	if !acknowledged {
		return nil, apierrors.Cluster(nil, "rollback swap for %q was not acknowledged", aliasName)
	}

	return &State{
		Alias:          aliasName,
		ActiveColor:    previousColor,
		ActiveIndex:    previousIndex,
		Status:         StatusCompleted,
		LastDeployment: c.now(),
	}, nil
}

// Cleanup deletes every index matching the non-active color for
// aliasName, excluding the active index itself. Deletes are sequential
// and best-effort; a failure is logged and skipped, does not abort the
// remaining deletes, and is not returned to the caller.
func (c *Coordinator) Cleanup(ctx context.Context, aliasName string) error {
	current, err := c.GetStatus(ctx, aliasName)
	if err != nil {
		return err
	}
	if current.ActiveIndex == "" {
		return nil
	}

	previousColor := current.ActiveColor.Opposite()
	candidates, err := c.gateway.IndexGet(ctx, lifecycle.ColorPattern(aliasName, previousColor), true)
	if err != nil {
		return err
	}

	for _, idx := range candidates {
		if idx == current.ActiveIndex {
			continue
		}
		if err := c.lifecycle.Delete(ctx, idx); err != nil {
			log.Warn().Err(err).Str("alias", aliasName).Str("index", idx).Msg("cleanup delete failed, skipping")
		}
	}
	return nil
}
