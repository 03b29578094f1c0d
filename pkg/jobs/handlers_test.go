package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdna/registry/pkg/actor"
)

func newJobServer(t *testing.T, cfg *JobConfig) (*httptest.Server, *JobStore) {
	t.Helper()
	store := NewJobStore(setupTestDB(t))
	srv := httptest.NewServer(actor.Middleware(actor.HeaderResolver{})(Router(store, cfg)))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, contentType, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(actor.UserHeader, "alice")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

const jsonRows = `[{"name":"Plant","asset_type":"System"},{"name":"Line","asset_type":"Subsystem","parent_name":"Plant"}]`

func TestEnqueueImportHandler(t *testing.T) {
	srv, store := newJobServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/import", "application/json", jsonRows, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "queued", body["state"])
	assert.Equal(t, "alice", body["requestedBy"])
	assert.Equal(t, "json", body["format"])
	assert.EqualValues(t, 2, body["totalRows"])

	job, err := store.Get(context.Background(), body["id"].(string))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jsonRows, job.Payload)
}

func TestEnqueueImportHandler_YAMLByContentType(t *testing.T) {
	srv, _ := newJobServer(t, nil)

	yamlRows := "- name: Plant\n  asset_type: System\n"
	resp, body := do(t, http.MethodPost, srv.URL+"/import", "application/yaml", yamlRows, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "yaml", body["format"])
}

func TestEnqueueImportHandler_Idempotent(t *testing.T) {
	srv, _ := newJobServer(t, nil)
	headers := map[string]string{IdempotencyHeader: "nightly-1"}

	resp1, body1 := do(t, http.MethodPost, srv.URL+"/import", "application/json", jsonRows, headers)
	require.Equal(t, http.StatusAccepted, resp1.StatusCode)
	resp2, body2 := do(t, http.MethodPost, srv.URL+"/import", "application/json", jsonRows, headers)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, body1["id"], body2["id"])
}

func TestEnqueueImportHandler_Rejections(t *testing.T) {
	cfg := DefaultJobConfig()
	cfg.MaxPayloadBytes = 256
	srv, _ := newJobServer(t, cfg)

	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"unknown format", "/import?format=csv", jsonRows, http.StatusBadRequest},
		{"malformed document", "/import", `{"name":`, http.StatusUnprocessableEntity},
		{"empty document", "/import", `[]`, http.StatusBadRequest},
		{"too large", "/import", "[" + strings.Repeat(" ", 300) + "]", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+tt.url, "application/json", tt.body, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetAndListJobHandlers(t *testing.T) {
	srv, store := newJobServer(t, nil)
	ctx := context.Background()

	job := newTestJob("bob", "")
	_, _, err := store.Enqueue(ctx, job)
	require.NoError(t, err)
	_, _, err = store.Enqueue(ctx, newTestJob("alice", ""))
	require.NoError(t, err)

	resp, body := do(t, http.MethodGet, srv.URL+"/import/"+job.ID, "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, job.ID, body["id"])
	assert.Equal(t, "bob", body["requestedBy"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/import/missing", "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/import?requestedBy=bob", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["totalSize"])
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/import?pageToken=bad", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelJobHandler(t *testing.T) {
	srv, store := newJobServer(t, nil)
	ctx := context.Background()

	queued := newTestJob("alice", "")
	_, _, err := store.Enqueue(ctx, queued)
	require.NoError(t, err)

	resp, body := do(t, http.MethodPost, srv.URL+"/import/"+queued.ID+"/cancel", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "canceled", body["status"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/import/"+queued.ID+"/cancel", "", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/import/missing/cancel", "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
