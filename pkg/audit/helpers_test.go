package audit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeRequest(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   action
		ok     bool
	}{
		{http.MethodPost, "/api/v1/assets", action{EntityType: "asset", Verb: "create"}, true},
		{http.MethodPatch, "/api/v1/assets/a1", action{EntityType: "asset", EntityID: "a1", Verb: "update"}, true},
		{http.MethodDelete, "/api/v1/assets/a1", action{EntityType: "asset", EntityID: "a1", Verb: "delete"}, true},
		{http.MethodPut, "/api/v1/assets/a1/move", action{EntityType: "asset", EntityID: "a1", Verb: "move"}, true},
		{http.MethodPost, "/api/v1/assets/a1/copy", action{EntityType: "asset", EntityID: "a1", Verb: "copy"}, true},
		{http.MethodPost, "/api/v1/assets/a1/bom", action{EntityType: "bom", EntityID: "a1", Verb: "upload"}, true},
		{http.MethodDelete, "/api/v1/assets/a1/bom/b1", action{EntityType: "bom", EntityID: "b1", Verb: "delete"}, true},
		{http.MethodPost, "/api/v1/jobs/import", action{EntityType: "import_job", Verb: "enqueue"}, true},
		{http.MethodPost, "/api/v1/jobs/import/j1/cancel", action{EntityType: "import_job", EntityID: "j1", Verb: "cancel"}, true},

		{http.MethodGet, "/api/v1/assets", action{}, false},
		{http.MethodGet, "/api/v1/assets/a1/bom/history", action{}, false},
		{http.MethodPost, "/api/v1/assets/a1/unknown", action{}, false},
		{http.MethodPost, "/api/v1/audit/events", action{}, false},
		{http.MethodPost, "/healthz", action{}, false},
		{http.MethodPost, "/api/v1/jobs/other", action{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got, ok := describeRequest(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionEventType(t *testing.T) {
	assert.Equal(t, "asset.move", action{EntityType: "asset", Verb: "move"}.EventType())
	assert.Equal(t, "bom.upload", action{EntityType: "bom", Verb: "upload"}.EventType())
}

func TestAssetIDFromPath(t *testing.T) {
	assert.Equal(t, "a1", assetIDFromPath("/api/v1/assets/a1/bom/b1"))
	assert.Equal(t, "", assetIDFromPath("/api/v1/assets"))
	assert.Equal(t, "", assetIDFromPath("/"))
}
