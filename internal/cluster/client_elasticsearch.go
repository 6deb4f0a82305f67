package cluster

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/apierrors"
)

// ElasticsearchClient wraps an *elasticsearch.Client and implements
// Gateway: build functional options, call, defer-close the body, read
// it all, check IsError, parse the error envelope, unmarshal the
// success shape.
type ElasticsearchClient struct {
	es *elasticsearch.Client
}

var _ Gateway = (*ElasticsearchClient)(nil)

// Config holds the connection settings for both cluster backends. The
// Elasticsearch client uses every field; the OpenSearch client uses only
// Addresses, Username, Password and InsecureSkipVerify.
type Config struct {
	Addresses          []string
	Username           string
	Password           string
	APIKey             string
	CloudID            string
	ServiceToken       string
	InsecureSkipVerify bool
	MaxRetries         int
	EnableDebugLogger  bool
}

// NewElasticsearchClient builds an ElasticsearchClient from cfg.
func NewElasticsearchClient(cfg Config) (*ElasticsearchClient, error) {
	log.Debug().Strs("addresses", cfg.Addresses).Msg("creating elasticsearch client")
	esCfg := elasticsearch.Config{
		Addresses:         cfg.Addresses,
		Username:          cfg.Username,
		Password:          cfg.Password,
		APIKey:            cfg.APIKey,
		CloudID:           cfg.CloudID,
		ServiceToken:      cfg.ServiceToken,
		MaxRetries:        cfg.MaxRetries,
		EnableDebugLogger: cfg.EnableDebugLogger,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				// #nosec G402 -- configurable for local/dev clusters only.
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
		},
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}
	return &ElasticsearchClient{es: es}, nil
}

func readBody(res *esapi.Response) ([]byte, error) {
	defer func() {
		_ = res.Body.Close()
	}()
	return io.ReadAll(res.Body)
}

func (c *ElasticsearchClient) checkError(op string, res *esapi.Response, body []byte) error {
	if !res.IsError() {
		return nil
	}
	if env, ok := parseErrorEnvelope(body); ok {
		return apierrors.Cluster(
			fmt.Errorf("%s: %s", env.Error.Type, env.Error.Reason),
			"elasticsearch %s failed with status %d", op, res.StatusCode,
		)
	}
	return apierrors.Cluster(
		fmt.Errorf("%s", string(body)),
		"elasticsearch %s failed with status %d", op, res.StatusCode,
	)
}

func (c *ElasticsearchClient) Bulk(ctx context.Context, items []BulkItem, refresh bool) (*BulkResult, error) {
	var buf bytes.Buffer
	for _, item := range items {
		header := map[string]interface{}{
			item.Action: map[string]interface{}{
				"_index": item.Index,
				"_id":    item.ID,
			},
		}
		headerJSON, err := json.Marshal(header)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal bulk action header")
		}
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

	opts := []func(*esapi.BulkRequest){c.es.Bulk.WithContext(ctx)}
	if refresh {
		opts = append(opts, c.es.Bulk.WithRefresh("true"))
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()), opts...)
	if err != nil {
		return nil, apierrors.Cluster(err, "bulk request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read bulk response body")
	}
	if err := c.checkError("bulk", res, body); err != nil {
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
		return nil, apierrors.Cluster(err, "failed to decode bulk response")
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

func (c *ElasticsearchClient) AliasesUpdate(ctx context.Context, actions []AliasAction) (bool, error) {
	type actionBody struct {
		Index string `json:"index"`
		Alias string `json:"alias"`
	}
	payload := struct {
		Actions []map[string]actionBody `json:"actions"`
	}{}
	for _, a := range actions {
		payload.Actions = append(payload.Actions, map[string]actionBody{
			a.Type: {Index: a.Index, Alias: a.Alias},
		})
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal alias actions")
	}

	res, err := c.es.Indices.UpdateAliases(
		bytes.NewReader(bodyBytes),
		c.es.Indices.UpdateAliases.WithContext(ctx),
	)
	if err != nil {
		return false, apierrors.Cluster(err, "alias update request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return false, apierrors.Cluster(err, "failed to read alias update response")
	}
	if err := c.checkError("update-aliases", res, body); err != nil {
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

func (c *ElasticsearchClient) AliasGet(ctx context.Context, name string) ([]string, error) {
	res, err := c.es.Indices.GetAlias(
		c.es.Indices.GetAlias.WithContext(ctx),
		c.es.Indices.GetAlias.WithName(name),
		c.es.Indices.GetAlias.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, apierrors.Cluster(err, "get-alias request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read get-alias response")
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := c.checkError("get-alias", res, body); err != nil {
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

func (c *ElasticsearchClient) AliasExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.ExistsAlias(
		[]string{name},
		c.es.Indices.ExistsAlias.WithContext(ctx),
	)
	if err != nil {
		return false, apierrors.Cluster(err, "alias-exists request failed")
	}
	defer func() {
		_ = res.Body.Close()
	}()
	return res.StatusCode == http.StatusOK, nil
}

func (c *ElasticsearchClient) IndexCreate(ctx context.Context, name string, mapping []byte, aliasName string) (bool, error) {
	payload := map[string]interface{}{}
	if len(mapping) > 0 {
		var m map[string]interface{}
		if err := json.Unmarshal(mapping, &m); err != nil {
			return false, errors.Wrap(err, "failed to parse mapping")
		}
		payload["mappings"] = m
	}
	if aliasName != "" {
		payload["aliases"] = map[string]interface{}{
			aliasName: map[string]interface{}{},
		}
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal index create request")
	}

	res, err := c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return false, apierrors.Cluster(err, "index create request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return false, apierrors.Cluster(err, "failed to read index create response")
	}
	if res.StatusCode == http.StatusBadRequest {
		if env, ok := parseErrorEnvelope(body); ok && strings.Contains(env.Error.Type, "resource_already_exists") {
			return false, apierrors.PreconditionFailed("index %q already exists", name)
		}
	}
	if err := c.checkError("create-index", res, body); err != nil {
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

func (c *ElasticsearchClient) IndexDelete(ctx context.Context, name string) error {
	res, err := c.es.Indices.Delete(
		[]string{name},
		c.es.Indices.Delete.WithContext(ctx),
		c.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return apierrors.Cluster(err, "index delete request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return apierrors.Cluster(err, "failed to read index delete response")
	}
	return c.checkError("delete-index", res, body)
}

func (c *ElasticsearchClient) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists(
		[]string{name},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, apierrors.Cluster(err, "index-exists request failed")
	}
	defer func() {
		_ = res.Body.Close()
	}()
	return res.StatusCode == http.StatusOK, nil
}

func (c *ElasticsearchClient) IndexGet(ctx context.Context, pattern string, ignoreUnavailable bool) ([]string, error) {
	res, err := c.es.Indices.Get(
		[]string{pattern},
		c.es.Indices.Get.WithContext(ctx),
		c.es.Indices.Get.WithIgnoreUnavailable(ignoreUnavailable),
		c.es.Indices.Get.WithAllowNoIndices(true),
	)
	if err != nil {
		return nil, apierrors.Cluster(err, "index get request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read index get response")
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := c.checkError("get-index", res, body); err != nil {
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

func (c *ElasticsearchClient) IndexRefresh(ctx context.Context, name string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(name),
	)
	if err != nil {
		return apierrors.Cluster(err, "index refresh request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return apierrors.Cluster(err, "failed to read index refresh response")
	}
	return c.checkError("refresh", res, body)
}

func (c *ElasticsearchClient) Count(ctx context.Context, name string) (int64, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(name),
	)
	if err != nil {
		return 0, apierrors.Cluster(err, "count request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return 0, apierrors.Cluster(err, "failed to read count response")
	}
	if err := c.checkError("count", res, body); err != nil {
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

func (c *ElasticsearchClient) ClusterHealth(ctx context.Context, index string, waitForStatus string, timeoutSeconds int) (*ClusterHealth, error) {
	opts := []func(*esapi.ClusterHealthRequest){
		c.es.Cluster.Health.WithContext(ctx),
	}
	if index != "" {
		opts = append(opts, c.es.Cluster.Health.WithIndex(index))
	}
	if waitForStatus != "" {
		opts = append(opts, c.es.Cluster.Health.WithWaitForStatus(waitForStatus))
	}
	if timeoutSeconds > 0 {
		opts = append(opts, c.es.Cluster.Health.WithTimeout(time.Duration(timeoutSeconds)*time.Second))
	}

	res, err := c.es.Cluster.Health(opts...)
	if err != nil {
		return nil, apierrors.Cluster(err, "cluster health request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read cluster health response")
	}
	if err := c.checkError("cluster-health", res, body); err != nil {
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

func (c *ElasticsearchClient) IndexStats(ctx context.Context, name string) (*IndexStats, error) {
	res, err := c.es.Indices.Stats(
		c.es.Indices.Stats.WithContext(ctx),
		c.es.Indices.Stats.WithIndex(name),
	)
	if err != nil {
		return nil, apierrors.Cluster(err, "index stats request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read index stats response")
	}
	if err := c.checkError("index-stats", res, body); err != nil {
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

func (c *ElasticsearchClient) Search(ctx context.Context, index string, query map[string]interface{}, from, size int) ([]byte, error) {
	bodyBytes, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search body")
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(bodyBytes)),
		c.es.Search.WithFrom(from),
		c.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, apierrors.Cluster(err, "search request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, apierrors.Cluster(err, "failed to read search response")
	}
	if err := c.checkError("search", res, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *ElasticsearchClient) GetDocument(ctx context.Context, index, id string) ([]byte, bool, error) {
	res, err := c.es.Get(
		index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, false, apierrors.Cluster(err, "get document request failed")
	}
	body, err := readBody(res)
	if err != nil {
		return nil, false, apierrors.Cluster(err, "failed to read get document response")
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err := c.checkError("get-document", res, body); err != nil {
		return nil, false, err
	}
	return body, true, nil
}
