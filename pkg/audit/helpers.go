package audit

import (
	"net/http"
	"strings"
)

// action describes the entity a mutating request touched.
type action struct {
	EntityType string
	EntityID   string
	Verb       string
}

// EventType is the dotted event name stored on the audit record, e.g. "asset.move".
func (a action) EventType() string {
	return a.EntityType + "." + a.Verb
}

// describeRequest maps a mutating API request onto the entity and verb it
// represents. It reports false for requests that are not audited.
//
//	POST   .../assets                       asset.create
//	PATCH  .../assets/{id}                  asset.update
//	DELETE .../assets/{id}                  asset.delete
//	PUT    .../assets/{id}/move             asset.move
//	POST   .../assets/{id}/copy             asset.copy
//	POST   .../assets/{id}/bom              bom.upload
//	DELETE .../assets/{id}/bom/{bomId}      bom.delete
//	POST   .../jobs/import                  import_job.enqueue
//	POST   .../jobs/import/{id}/cancel      import_job.cancel
func describeRequest(method, path string) (action, bool) {
	if !isMutation(method) || isHealthEndpoint(path) {
		return action{}, false
	}
	parts := splitPath(path)

	for i, p := range parts {
		rest := parts[i+1:]
		switch p {
		case "assets":
			return describeAsset(method, rest)
		case "jobs":
			if len(rest) > 0 && rest[0] == "import" {
				return describeImportJob(method, rest[1:])
			}
			return action{}, false
		case "audit":
			return action{}, false
		}
	}
	return action{}, false
}

func describeAsset(method string, rest []string) (action, bool) {
	switch len(rest) {
	case 0:
		if method == http.MethodPost {
			return action{EntityType: "asset", Verb: "create"}, true
		}
	case 1:
		switch method {
		case http.MethodPatch, http.MethodPut:
			return action{EntityType: "asset", EntityID: rest[0], Verb: "update"}, true
		case http.MethodDelete:
			return action{EntityType: "asset", EntityID: rest[0], Verb: "delete"}, true
		}
	case 2:
		switch {
		case rest[1] == "move" && method == http.MethodPut:
			return action{EntityType: "asset", EntityID: rest[0], Verb: "move"}, true
		case rest[1] == "copy" && method == http.MethodPost:
			return action{EntityType: "asset", EntityID: rest[0], Verb: "copy"}, true
		case rest[1] == "bom" && method == http.MethodPost:
			return action{EntityType: "bom", EntityID: rest[0], Verb: "upload"}, true
		}
	case 3:
		if rest[1] == "bom" && method == http.MethodDelete {
			return action{EntityType: "bom", EntityID: rest[2], Verb: "delete"}, true
		}
	}
	return action{}, false
}

func describeImportJob(method string, rest []string) (action, bool) {
	switch {
	case len(rest) == 0 && method == http.MethodPost:
		return action{EntityType: "import_job", Verb: "enqueue"}, true
	case len(rest) == 2 && rest[1] == "cancel" && method == http.MethodPost:
		return action{EntityType: "import_job", EntityID: rest[0], Verb: "cancel"}, true
	}
	return action{}, false
}

// assetIDFromPath returns the asset id segment following "assets", if any.
func assetIDFromPath(path string) string {
	parts := splitPath(path)
	for i, p := range parts {
		if p == "assets" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isHealthEndpoint returns true for health check endpoints.
func isHealthEndpoint(path string) bool {
	return path == "/livez" || path == "/readyz" || path == "/healthz" || path == "/metrics"
}
