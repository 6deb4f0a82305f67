package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newSessionID mints "batch_{epochMs}_{random9}", following the naming
// rule in the session data model. The random component is taken from a
// UUIDv4 rather than hand-rolled randomness.
func newSessionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("batch_%d_%s", now.UnixMilli(), random[:9])
}

// documentID resolves the bulk operation id for one document of a
// batch: an explicit "id" field wins, then "recordId", then a
// synthetic id scoped to this session, batch and position.
func documentID(doc map[string]interface{}, sessionID string, batchNumber, indexInBatch int, now time.Time) string {
	if id, ok := doc["id"]; ok {
		if s := fmt.Sprint(id); s != "" && s != "<nil>" {
			return s
		}
	}
	if recordID, ok := doc["recordId"]; ok {
		if s := fmt.Sprint(recordID); s != "" && s != "<nil>" {
			return s
		}
	}
	return fmt.Sprintf("doc_%s_%d_%d_%d", sessionID, batchNumber, indexInBatch, now.UnixMilli())
}
