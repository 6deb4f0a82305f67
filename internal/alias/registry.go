// Package alias owns CRUD over alias-to-index bindings and the one
// atomic swap path through which alias membership is ever mutated.
package alias

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/cluster"
)

// Registry is CRUD over alias->index bindings, backed by a Gateway.
type Registry struct {
	gateway cluster.Gateway
}

// New builds a Registry over the given Gateway.
func New(gateway cluster.Gateway) *Registry {
	return &Registry{gateway: gateway}
}

// Exists reports whether the alias currently resolves to any index.
func (r *Registry) Exists(ctx context.Context, alias string) (bool, error) {
	return r.gateway.AliasExists(ctx, alias)
}

// IndicesFor returns the indices currently bound to alias, or an empty
// slice if the alias is unbound. An unbound alias is not an error.
func (r *Registry) IndicesFor(ctx context.Context, alias string) ([]string, error) {
	indices, err := r.gateway.AliasGet(ctx, alias)
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// Create binds alias to index via a single add action.
func (r *Registry) Create(ctx context.Context, aliasName, index string) (bool, error) {
	return r.gateway.AliasesUpdate(ctx, []cluster.AliasAction{
		{Type: "add", Index: index, Alias: aliasName},
	})
}

// Swap moves alias atomically from its current indices to newIndex.
// Every index currently bound that differs from newIndex is removed
// in the same atomic call that adds newIndex; this is the only path
// through which alias membership changes. If deleteOld is set and the
// update is acknowledged, the removed indices are deleted afterward,
// best-effort: a delete failure is logged and skipped, never reverting
// the swap that already happened.
func (r *Registry) Swap(ctx context.Context, aliasName, newIndex string, deleteOld bool) (bool, error) {
	current, err := r.gateway.AliasGet(ctx, aliasName)
	if err != nil {
		return false, err
	}

	var actions []cluster.AliasAction
	var removed []string
	for _, idx := range current {
		if idx == newIndex {
			continue
		}
		actions = append(actions, cluster.AliasAction{Type: "remove", Index: idx, Alias: aliasName})
		removed = append(removed, idx)
	}
	actions = append(actions, cluster.AliasAction{Type: "add", Index: newIndex, Alias: aliasName})

	acknowledged, err := r.gateway.AliasesUpdate(ctx, actions)
	if err != nil {
		return false, err
	}
	if !acknowledged {
		return false, nil
	}

	if deleteOld {
		for _, idx := range removed {
			if err := r.gateway.IndexDelete(ctx, idx); err != nil {
				log.Warn().Err(err).Str("alias", aliasName).Str("index", idx).
					Msg("best-effort delete of old index after swap failed")
			}
		}
	}
	return true, nil
}

// SortDescending sorts index names lexicographically descending; since
// timestamps are zero-padded fixed-width strings, this equals
// most-recent-first.
func SortDescending(names []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
}
