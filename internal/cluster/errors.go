package cluster

import "encoding/json"

// errorEnvelope is the JSON shape Elasticsearch and OpenSearch both use
// for top-level error responses.
type errorEnvelope struct {
	Error struct {
		RootCause []struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
			Index  string `json:"index,omitempty"`
		} `json:"root_cause"`
		Type   string `json:"type"`
		Reason string `json:"reason"`
		Index  string `json:"index,omitempty"`
	} `json:"error"`
	Status int `json:"status"`
}

// parseErrorEnvelope parses a response body and reports whether it
// matches the cluster's error-response schema.
func parseErrorEnvelope(body []byte) (*errorEnvelope, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Status == 0 && env.Error.Type == "" {
		return nil, false
	}
	return &env, true
}
