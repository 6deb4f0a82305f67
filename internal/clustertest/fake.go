// Package clustertest provides an in-memory fake of cluster.Gateway for
// exercising the control plane's state machine and session logic
// without a live search cluster, isolating business logic tests from
// the wire protocol.
package clustertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/cluster"
)

type fakeIndex struct {
	docs    map[string]map[string]interface{}
	mapping []byte
}

// Gateway is an in-memory cluster.Gateway. Build one with New; the zero
// value has nil maps and is not ready to use.
type Gateway struct {
	mu      sync.Mutex
	indices map[string]*fakeIndex
	aliases map[string]map[string]bool // alias -> set of index names

	// FailNextBulk, when set, is returned as the error from the next
	// Bulk call and then cleared, letting tests simulate a transport
	// failure mid-session.
	FailNextBulk error
}

// New builds an empty fake Gateway.
func New() *Gateway {
	return &Gateway{
		indices: make(map[string]*fakeIndex),
		aliases: make(map[string]map[string]bool),
	}
}

var _ cluster.Gateway = (*Gateway)(nil)

func (g *Gateway) Bulk(_ context.Context, items []cluster.BulkItem, _ bool) (*cluster.BulkResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailNextBulk != nil {
		err := g.FailNextBulk
		g.FailNextBulk = nil
		return nil, err
	}

	result := &cluster.BulkResult{}
	for _, item := range items {
		idx, ok := g.indices[item.Index]
		if !ok {
			result.AnyErrors = true
			result.Items = append(result.Items, cluster.BulkItemResult{
				Action: item.Action, Index: item.Index, ID: item.ID, Status: 404,
				Error: &cluster.ItemError{Type: "index_not_found_exception", Reason: "no such index", Status: 404},
			})
			continue
		}
		switch item.Action {
		case "delete":
			delete(idx.docs, item.ID)
			result.Items = append(result.Items, cluster.BulkItemResult{Action: item.Action, Index: item.Index, ID: item.ID, Status: 200})
		default:
			idx.docs[item.ID] = item.Source
			result.Items = append(result.Items, cluster.BulkItemResult{Action: item.Action, Index: item.Index, ID: item.ID, Status: 201})
		}
	}
	return result, nil
}

func (g *Gateway) AliasesUpdate(_ context.Context, actions []cluster.AliasAction) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, a := range actions {
		if a.Type == "add" {
			if _, ok := g.indices[a.Index]; !ok {
				return false, apierrors.NotFound("index %q does not exist", a.Index)
			}
		}
	}
	for _, a := range actions {
		set, ok := g.aliases[a.Alias]
		if !ok {
			set = make(map[string]bool)
			g.aliases[a.Alias] = set
		}
		switch a.Type {
		case "add":
			set[a.Index] = true
		case "remove":
			delete(set, a.Index)
		}
	}
	return true, nil
}

func (g *Gateway) AliasGet(_ context.Context, name string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.aliases[name]
	if !ok {
		return nil, nil
	}
	indices := make([]string, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Strings(indices)
	return indices, nil
}

func (g *Gateway) AliasExists(ctx context.Context, name string) (bool, error) {
	indices, err := g.AliasGet(ctx, name)
	return len(indices) > 0, err
}

func (g *Gateway) IndexCreate(_ context.Context, name string, mapping []byte, aliasName string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.indices[name]; ok {
		return false, apierrors.PreconditionFailed("index %q already exists", name)
	}
	g.indices[name] = &fakeIndex{docs: make(map[string]map[string]interface{}), mapping: mapping}
	if aliasName != "" {
		set, ok := g.aliases[aliasName]
		if !ok {
			set = make(map[string]bool)
			g.aliases[aliasName] = set
		}
		set[name] = true
	}
	return true, nil
}

func (g *Gateway) IndexDelete(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.indices, name)
	for _, set := range g.aliases {
		delete(set, name)
	}
	return nil
}

func (g *Gateway) IndexExists(_ context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.indices[name]
	return ok, nil
}

func (g *Gateway) IndexGet(_ context.Context, pattern string, _ bool) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := strings.TrimSuffix(pattern, "*")
	var names []string
	for name := range g.indices {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *Gateway) IndexRefresh(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.indices[name]; !ok {
		return apierrors.NotFound("index %q does not exist", name)
	}
	return nil
}

func (g *Gateway) Count(_ context.Context, name string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.indices[name]
	if !ok {
		return 0, nil
	}
	return int64(len(idx.docs)), nil
}

func (g *Gateway) ClusterHealth(_ context.Context, index string, _ string, _ int) (*cluster.ClusterHealth, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if index != "" {
		if _, ok := g.indices[index]; !ok {
			return &cluster.ClusterHealth{Status: cluster.HealthRed}, nil
		}
	}
	return &cluster.ClusterHealth{Status: cluster.HealthGreen, NumberOfNodes: 1, ActivePrimaryShards: 1, ActiveShards: 1}, nil
}

func (g *Gateway) IndexStats(_ context.Context, name string) (*cluster.IndexStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.indices[name]
	if !ok {
		return nil, apierrors.NotFound("index %q does not exist", name)
	}
	return &cluster.IndexStats{DocCount: int64(len(idx.docs))}, nil
}

func (g *Gateway) Search(_ context.Context, index string, _ map[string]interface{}, _, _ int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.indices[index]; !ok {
		return nil, apierrors.NotFound("index %q does not exist", index)
	}
	return []byte(fmt.Sprintf(`{"hits":{"total":%d}}`, len(g.indices[index].docs))), nil
}

func (g *Gateway) GetDocument(_ context.Context, index, id string) ([]byte, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.indices[index]
	if !ok {
		return nil, false, nil
	}
	doc, ok := idx.docs[id]
	if !ok {
		return nil, false, nil
	}
	return []byte(fmt.Sprintf(`{"_id":%q,"_source":%v}`, id, doc)), true, nil
}

// DocCount is a test helper returning the current document count for
// name without going through the Gateway interface's context plumbing.
func (g *Gateway) DocCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.indices[name]
	if !ok {
		return 0
	}
	return len(idx.docs)
}

// IndexExistsNow is a non-error test helper mirroring IndexExists.
func (g *Gateway) IndexExistsNow(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.indices[name]
	return ok
}
