package httpapi

import (
	"net/http"
	"time"

	"github.com/go-go-golems/bluedex/internal/apierrors"
)

type textSearchRequest struct {
	Query     string   `json:"query"`
	Alias     string   `json:"alias"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
	Fields    []string `json:"fields"`
	Highlight bool     `json:"highlight"`
}

func (s *Server) handleSearchText(w http.ResponseWriter, r *http.Request) {
	var req textSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeError(w, apierrors.InvalidArgument("query must not be blank"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Limit > 100 {
		writeError(w, apierrors.InvalidArgument("limit must not exceed 100"))
		return
	}
	if req.Alias == "" {
		writeError(w, apierrors.InvalidArgument("alias is required"))
		return
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  req.Query,
				"fields": req.Fields,
			},
		},
	}
	if req.Highlight {
		body["highlight"] = map[string]interface{}{"fields": map[string]interface{}{"*": map[string]interface{}{}}}
	}

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	raw, err := s.gateway.Search(ctx, req.Alias, body, req.Offset, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

type criteriaSearchRequest struct {
	Criteria map[string]interface{} `json:"criteria"`
	Alias    string                  `json:"alias"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Sort     []map[string]string     `json:"sort"`
	Aggs     map[string]interface{}  `json:"aggs"`
}

func (s *Server) handleSearchCriteria(w http.ResponseWriter, r *http.Request) {
	var req criteriaSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Alias == "" {
		writeError(w, apierrors.InvalidArgument("alias is required"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Limit > 100 {
		writeError(w, apierrors.InvalidArgument("limit must not exceed 100"))
		return
	}

	var filters []map[string]interface{}
	for field, value := range req.Criteria {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: value}})
	}
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	if len(req.Aggs) > 0 {
		body["aggs"] = req.Aggs
	}

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	raw, err := s.gateway.Search(ctx, req.Alias, body, req.Offset, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	alias := r.URL.Query().Get("alias")
	if alias == "" {
		writeError(w, apierrors.InvalidArgument("alias query parameter is required"))
		return
	}

	ctx, cancel := contextWithTimeout(r, 15*time.Second)
	defer cancel()

	body, found, err := s.gateway.GetDocument(ctx, alias, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, apierrors.NotFound("document %q not found in alias %q", productID, alias))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
