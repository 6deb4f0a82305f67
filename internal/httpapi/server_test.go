package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/clustertest"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/httpapi"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
	"github.com/go-go-golems/bluedex/internal/session"
)

func newTestServer() (http.Handler, *clustertest.Gateway) {
	gw := clustertest.New()
	registry := alias.New(gw)
	lc := lifecycle.New(gw, func(string) ([]byte, error) { return []byte(`{}`), nil })
	probe := health.New(gw)
	coordinator := deploy.New(gw, registry, lc, probe)
	sessions := session.New(gw, lc, coordinator, probe)
	return httpapi.New(gw, coordinator, sessions, probe).Handler(), gw
}

func TestStartProcessCompleteSession_EndToEnd(t *testing.T) {
	handler, _ := newTestServer()

	startReq := httptest.NewRequest(http.MethodPost, "/api/v1/products/products-test/batch/start?strategy=auto-swap", nil)
	startRec := httptest.NewRecorder()
	handler.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusOK, startRec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)

	batch := []map[string]interface{}{{"id": "A"}, {"id": "B"}}
	body, err := json.Marshal(batch)
	require.NoError(t, err)
	processReq := httptest.NewRequest(http.MethodPost, "/api/v1/products/batch/"+sess.ID+"/process", bytes.NewReader(body))
	processRec := httptest.NewRecorder()
	handler.ServeHTTP(processRec, processReq)
	require.Equal(t, http.StatusOK, processRec.Code)

	completeReq := httptest.NewRequest(http.MethodPost, "/api/v1/products/batch/"+sess.ID+"/complete", nil)
	completeRec := httptest.NewRecorder()
	handler.ServeHTTP(completeRec, completeReq)
	require.Equal(t, http.StatusOK, completeRec.Code)

	var state deploy.State
	require.NoError(t, json.Unmarshal(completeRec.Body.Bytes(), &state))
	assert.Equal(t, deploy.StatusCompleted, state.Status)
}

func TestSessionStatus_UnknownSessionIsNotFound(t *testing.T) {
	handler, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/batch/nonexistent/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["api"])
}
