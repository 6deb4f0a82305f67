package deploy

import (
	"fmt"
	"time"
)

// documentID resolves the bulk operation id for one document of a
// direct (non-session) deployment: an explicit "id" field wins, then
// "recordId", then a synthetic id scoped to this deployment run
// instead of a session id, since a direct deploy has no session.
func documentID(doc map[string]interface{}, runToken string, index int, now time.Time) string {
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
	return fmt.Sprintf("doc_%s_%d_%d", runToken, index, now.UnixMilli())
}
