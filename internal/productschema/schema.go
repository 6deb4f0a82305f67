// Package productschema supplies the default mapping for the "product"
// domain object. The control plane never inspects these bytes; this is
// one concrete lifecycle.MappingProvider among potentially many.
package productschema

import "encoding/json"

var defaultMapping = json.RawMessage(`{
	"properties": {
		"id":          {"type": "keyword"},
		"name":        {"type": "text"},
		"description": {"type": "text"},
		"category":    {"type": "keyword"},
		"price":       {"type": "double"},
		"inStock":     {"type": "boolean"},
		"updatedAt":   {"type": "date"}
	}
}`)

// Provider is a lifecycle.MappingProvider that returns the same
// product mapping regardless of alias, matching the single-domain
// scope of this control plane.
func Provider(_ string) ([]byte, error) {
	return defaultMapping, nil
}
