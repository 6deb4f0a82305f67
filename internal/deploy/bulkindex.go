package deploy

import (
	"context"

	"github.com/go-go-golems/bluedex/internal/cluster"
)

// chunkSize is the bulk-index chunk size Deploy uses. The session
// manager does not go through this helper: it sends each batch as a
// single Bulk call.
const chunkSize = 100

// bulkIndexDocuments indexes docs into targetIndex in chunks of
// chunkSize, issuing refresh=true on each chunk. Per-item failures are
// collected and returned alongside the total successful count; a chunk
// transport error aborts the whole call.
func bulkIndexDocuments(ctx context.Context, gateway cluster.Gateway, targetIndex string, ids []string, docs []map[string]interface{}) (successful int, itemErrors []cluster.BulkItemResult, err error) {
	for start := 0; start < len(docs); start += chunkSize {
		end := start + chunkSize
		if end > len(docs) {
			end = len(docs)
		}

		items := make([]cluster.BulkItem, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, cluster.BulkItem{
				Action: "index",
				Index:  targetIndex,
				ID:     ids[i],
				Source: docs[i],
			})
		}

		result, err := gateway.Bulk(ctx, items, true)
		if err != nil {
			return successful, itemErrors, err
		}
		for _, item := range result.Items {
			if item.Error == nil {
				successful++
			} else {
				itemErrors = append(itemErrors, item)
			}
		}
	}
	return successful, itemErrors, nil
}
