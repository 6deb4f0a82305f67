// Package cluster provides a thin, typed wrapper over the search
// cluster's bulk, alias, index, health, count and refresh primitives.
// It carries no policy: every method is a direct translation of one
// cluster operation, following the request-building idiom of
// github.com/elastic/go-elasticsearch/v8's esapi.
package cluster

import "context"

// BulkItem is one line pair of a bulk request: an action header plus an
// optional source document for index/create/update actions.
type BulkItem struct {
	Action string                 // "index", "create", "update", "delete"
	Index  string                 // target index for this item
	ID     string                 // document id, may be empty to let the cluster assign one
	Source map[string]interface{} // nil for delete actions
}

// BulkItemResult is the per-item outcome of a bulk call.
type BulkItemResult struct {
	Action string
	Index  string
	ID     string
	Status int
	Error  *ItemError // non-nil only on failure
}

// ItemError is the per-item error payload the cluster returns inline in
// a bulk response.
type ItemError struct {
	Type   string
	Reason string
	Status int
}

// BulkResult is the outcome of one Bulk call.
type BulkResult struct {
	AnyErrors bool
	Items     []BulkItemResult
}

// AliasAction is one step ("add" or "remove") of an atomic alias
// mutation list.
type AliasAction struct {
	Type  string // "add" or "remove"
	Index string
	Alias string
}

// HealthStatus mirrors the cluster's traffic-light health classification.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "green"
	HealthYellow HealthStatus = "yellow"
	HealthRed    HealthStatus = "red"
)

// ClusterHealth is the subset of the cluster health response this
// control plane consumes.
type ClusterHealth struct {
	Status                     HealthStatus
	NumberOfNodes              int
	ActivePrimaryShards        int
	ActiveShards               int
	UnassignedShards           int
	TimedOut                   bool
}

// IndexStats is the subset of per-index stats this control plane
// consumes.
type IndexStats struct {
	DocCount       int64
	StoreSizeBytes int64
	IndexingRate   float64
	SearchRate     float64
}

// Gateway is the cluster's surface area as seen by the control plane.
// All methods may fail with a wrapped transport/cluster error
// (apierrors.Cluster).
type Gateway interface {
	Bulk(ctx context.Context, items []BulkItem, refresh bool) (*BulkResult, error)
	AliasesUpdate(ctx context.Context, actions []AliasAction) (acknowledged bool, err error)
	AliasGet(ctx context.Context, name string) (indices []string, err error)
	AliasExists(ctx context.Context, name string) (bool, error)
	IndexCreate(ctx context.Context, name string, mapping []byte, aliasName string) (acknowledged bool, err error)
	IndexDelete(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexGet(ctx context.Context, pattern string, ignoreUnavailable bool) (indices []string, err error)
	IndexRefresh(ctx context.Context, name string) error
	Count(ctx context.Context, name string) (int64, error)
	ClusterHealth(ctx context.Context, index string, waitForStatus string, timeoutSeconds int) (*ClusterHealth, error)
	IndexStats(ctx context.Context, name string) (*IndexStats, error)
	// Search executes a raw query-DSL body against an index or alias and
	// returns the raw JSON response body; the control plane treats query
	// construction as out of scope and passes the caller's body through.
	Search(ctx context.Context, index string, body map[string]interface{}, from, size int) ([]byte, error)
	// GetDocument fetches a single document's source by id.
	GetDocument(ctx context.Context, index, id string) ([]byte, bool, error)
}
