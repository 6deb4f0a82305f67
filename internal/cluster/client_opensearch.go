package cluster

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/apierrors"
)

// OpenSearchClient wraps the low-level opensearch-go/v4 transport and
// implements Gateway against OpenSearch's Elasticsearch-compatible REST
// surface.
//
// It drives requests through the client's underlying HTTP transport
// directly (the same wire format the Elasticsearch-compatible REST API
// shares with OpenSearch) rather than the higher-level opensearchapi
// request-struct client, building each request from a REST path and
// query parameters in the do helper below.
type OpenSearchClient struct {
	client *opensearch.Client
}

var _ Gateway = (*OpenSearchClient)(nil)

// NewOpenSearchClient builds an OpenSearchClient from cfg.
func NewOpenSearchClient(cfg Config) (*OpenSearchClient, error) {
	log.Debug().Strs("addresses", cfg.Addresses).Msg("creating opensearch client")
	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				// #nosec G402 -- configurable for local/dev clusters only.
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
		},
	}
	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opensearch client")
	}
	return &OpenSearchClient{client: client}, nil
}

func (c *OpenSearchClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	fullPath := path
	if len(query) > 0 {
		fullPath = fmt.Sprintf("%s?%s", path, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, fullPath, reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build opensearch request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.client.Perform(req)
	if err != nil {
		return 0, nil, apierrors.Cluster(err, "opensearch request to %s failed", path)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, apierrors.Cluster(err, "failed to read opensearch response body")
	}
	return res.StatusCode, respBody, nil
}

func (c *OpenSearchClient) checkError(op string, status int, body []byte) error {
	if status < 400 {
		return nil
	}
	if env, ok := parseErrorEnvelope(body); ok {
		return apierrors.Cluster(
			fmt.Errorf("%s: %s", env.Error.Type, env.Error.Reason),
			"opensearch %s failed with status %d", op, status,
		)
	}
	return apierrors.Cluster(fmt.Errorf("%s", string(body)), "opensearch %s failed with status %d", op, status)
}

func (c *OpenSearchClient) Bulk(ctx context.Context, items []BulkItem, refresh bool) (*BulkResult, error) {
	var buf bytes.Buffer
	for _, item := range items {
		header := map[string]interface{}{
			item.Action: map[string]interface{}{"_index": item.Index, "_id": item.ID},
		}
		headerJSON, _ := json.Marshal(header)
		buf.Write(headerJSON)
		buf.WriteByte('\n')
		if item.Action != "delete" {
			srcJSON, err := json.Marshal(item.Source)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal bulk document source")
			}
			buf.Write(srcJSON)
			buf.WriteByte('\n')
		}
	}

	q := url.Values{}
	if refresh {
		q.Set("refresh", "true")
	}
	status, body, err := c.do(ctx, http.MethodPost, "/_bulk", q, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := c.checkError("bulk", status, body); err != nil {
		return nil, err
	}

	var raw struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Index  string `json:"_index"`
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Cluster(err, "failed to decode opensearch bulk response")
	}
	result := &BulkResult{AnyErrors: raw.Errors}
	for _, item := range raw.Items {
		for action, r := range item {
			ir := BulkItemResult{Action: action, Index: r.Index, ID: r.ID, Status: r.Status}
			if r.Error != nil {
				ir.Error = &ItemError{Type: r.Error.Type, Reason: r.Error.Reason, Status: r.Status}
			}
			result.Items = append(result.Items, ir)
		}
	}
	return result, nil
}

func (c *OpenSearchClient) AliasesUpdate(ctx context.Context, actions []AliasAction) (bool, error) {
	type actionBody struct {
		Index string `json:"index"`
		Alias string `json:"alias"`
	}
	payload := struct {
		Actions []map[string]actionBody `json:"actions"`
	}{}
	for _, a := range actions {
		payload.Actions = append(payload.Actions, map[string]actionBody{a.Type: {Index: a.Index, Alias: a.Alias}})
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal alias actions")
	}
	status, body, err := c.do(ctx, http.MethodPost, "/_aliases", nil, bodyBytes)
	if err != nil {
		return false, err
	}
	if err := c.checkError("update-aliases", status, body); err != nil {
		return false, err
	}
	var ack struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return false, apierrors.Cluster(err, "failed to decode alias update response")
	}
	return ack.Acknowledged, nil
}

func (c *OpenSearchClient) AliasGet(ctx context.Context, name string) ([]string, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/_alias/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := c.checkError("get-alias", status, body); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Cluster(err, "failed to decode get-alias response")
	}
	indices := make([]string, 0, len(raw))
	for idx := range raw {
		indices = append(indices, idx)
	}
	return indices, nil
}

func (c *OpenSearchClient) AliasExists(ctx context.Context, name string) (bool, error) {
	status, _, err := c.do(ctx, http.MethodHead, "/_alias/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (c *OpenSearchClient) IndexCreate(ctx context.Context, name string, mapping []byte, aliasName string) (bool, error) {
	payload := map[string]interface{}{}
	if len(mapping) > 0 {
		var m map[string]interface{}
		if err := json.Unmarshal(mapping, &m); err != nil {
			return false, errors.Wrap(err, "failed to parse mapping")
		}
		payload["mappings"] = m
	}
	if aliasName != "" {
		payload["aliases"] = map[string]interface{}{aliasName: map[string]interface{}{}}
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal index create request")
	}
	status, body, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(name), nil, bodyBytes)
	if err != nil {
		return false, err
	}
	if status == http.StatusBadRequest {
		if env, ok := parseErrorEnvelope(body); ok && strings.Contains(env.Error.Type, "resource_already_exists") {
			return false, apierrors.PreconditionFailed("index %q already exists", name)
		}
	}
	if err := c.checkError("create-index", status, body); err != nil {
		return false, err
	}
	var ack struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return false, apierrors.Cluster(err, "failed to decode index create response")
	}
	return ack.Acknowledged, nil
}

func (c *OpenSearchClient) IndexDelete(ctx context.Context, name string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(name), url.Values{"ignore_unavailable": {"true"}}, nil)
	if err != nil {
		return err
	}
	return c.checkError("delete-index", status, body)
}

func (c *OpenSearchClient) IndexExists(ctx context.Context, name string) (bool, error) {
	status, _, err := c.do(ctx, http.MethodHead, "/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (c *OpenSearchClient) IndexGet(ctx context.Context, pattern string, ignoreUnavailable bool) ([]string, error) {
	q := url.Values{"allow_no_indices": {"true"}}
	if ignoreUnavailable {
		q.Set("ignore_unavailable", "true")
	}
	status, body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(pattern), q, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := c.checkError("get-index", status, body); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Cluster(err, "failed to decode index get response")
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	return names, nil
}

func (c *OpenSearchClient) IndexRefresh(ctx context.Context, name string) error {
	status, body, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(name)+"/_refresh", nil, nil)
	if err != nil {
		return err
	}
	return c.checkError("refresh", status, body)
}

func (c *OpenSearchClient) Count(ctx context.Context, name string) (int64, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(name)+"/_count", nil, nil)
	if err != nil {
		return 0, err
	}
	if err := c.checkError("count", status, body); err != nil {
		return 0, err
	}
	var raw struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, apierrors.Cluster(err, "failed to decode count response")
	}
	return raw.Count, nil
}

func (c *OpenSearchClient) ClusterHealth(ctx context.Context, index string, waitForStatus string, timeoutSeconds int) (*ClusterHealth, error) {
	path := "/_cluster/health"
	if index != "" {
		path += "/" + url.PathEscape(index)
	}
	q := url.Values{}
	if waitForStatus != "" {
		q.Set("wait_for_status", waitForStatus)
	}
	if timeoutSeconds > 0 {
		q.Set("timeout", strconv.Itoa(timeoutSeconds)+"s")
	}
	status, body, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	if err := c.checkError("cluster-health", status, body); err != nil {
		return nil, err
	}
	var raw struct {
		Status              string `json:"status"`
		NumberOfNodes       int    `json:"number_of_nodes"`
		ActivePrimaryShards int    `json:"active_primary_shards"`
		ActiveShards        int    `json:"active_shards"`
		UnassignedShards    int    `json:"unassigned_shards"`
		TimedOut            bool   `json:"timed_out"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Cluster(err, "failed to decode cluster health response")
	}
	return &ClusterHealth{
		Status:              HealthStatus(raw.Status),
		NumberOfNodes:       raw.NumberOfNodes,
		ActivePrimaryShards: raw.ActivePrimaryShards,
		ActiveShards:        raw.ActiveShards,
		UnassignedShards:    raw.UnassignedShards,
		TimedOut:            raw.TimedOut,
	}, nil
}

func (c *OpenSearchClient) IndexStats(ctx context.Context, name string) (*IndexStats, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(name)+"/_stats", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.checkError("index-stats", status, body); err != nil {
		return nil, err
	}
	var raw struct {
		Indices map[string]struct {
			Total struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
				Indexing struct {
					IndexTotal int64 `json:"index_total"`
				} `json:"indexing"`
				Search struct {
					QueryTotal int64 `json:"query_total"`
				} `json:"search"`
			} `json:"total"`
		} `json:"indices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Cluster(err, "failed to decode index stats response")
	}
	stats := &IndexStats{}
	for _, s := range raw.Indices {
		stats.DocCount = s.Total.Docs.Count
		stats.StoreSizeBytes = s.Total.Store.SizeInBytes
		stats.IndexingRate = float64(s.Total.Indexing.IndexTotal)
		stats.SearchRate = float64(s.Total.Search.QueryTotal)
	}
	return stats, nil
}

func (c *OpenSearchClient) Search(ctx context.Context, index string, query map[string]interface{}, from, size int) ([]byte, error) {
	bodyBytes, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search body")
	}
	q := url.Values{"from": {strconv.Itoa(from)}, "size": {strconv.Itoa(size)}}
	status, body, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", q, bodyBytes)
	if err != nil {
		return nil, err
	}
	if err := c.checkError("search", status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *OpenSearchClient) GetDocument(ctx context.Context, index, id string) ([]byte, bool, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(index)+"/_doc/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if err := c.checkError("get-document", status, body); err != nil {
		return nil, false, err
	}
	return body, true, nil
}
