package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/assetdna/registry/pkg/actor"
	"github.com/assetdna/registry/pkg/inventory"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"

	// maxCapturedBody bounds how much of a response is kept to read back the
	// created entity id or the error message.
	maxCapturedBody = 64 << 10
)

// Appender persists audit events. *inventory.AuditStore satisfies it.
type Appender interface {
	Append(ctx context.Context, event *inventory.AuditEvent) error
}

// responseCapture wraps http.ResponseWriter to capture the status code and
// the head of the response body.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       []byte
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	if room := maxCapturedBody - len(rc.body); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rc.body = append(rc.body, b[:room]...)
	}
	return rc.ResponseWriter.Write(b)
}

// responseFields picks the entity id and error message out of a JSON response.
func (rc *responseCapture) responseFields() (id, errMsg string) {
	var body struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	if len(rc.body) == 0 || json.Unmarshal(rc.body, &body) != nil {
		return "", ""
	}
	return body.ID, body.Error
}

// AuditMiddleware records an inventory.AuditEvent for every mutating API
// request after the handler completes. Writes are best-effort: a failed
// append is logged and never changes the response.
func AuditMiddleware(store Appender, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			act, ok := describeRequest(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(capture, r)

			statusCode := capture.statusCode
			outcome := outcomeFromStatus(statusCode)
			if outcome == outcomeFailure && !cfg.LogFailures {
				return
			}

			ctx := r.Context()
			principal, _ := actor.PrincipalFromContext(ctx)
			requestID := middleware.GetReqID(ctx)

			correlationID := r.Header.Get("X-Correlation-ID")
			if correlationID == "" {
				correlationID = requestID
			}

			metadata := inventory.JSONAny{
				"method":        r.Method,
				"path":          r.URL.Path,
				"durationMs":    time.Since(startTime).Milliseconds(),
				"correlationId": correlationID,
			}
			if len(principal.Groups) > 0 {
				metadata["groups"] = principal.Groups
			}

			createdID, errMsg := capture.responseFields()
			entityID := act.EntityID
			switch {
			case outcome != outcomeSuccess:
			case entityID == "":
				entityID = createdID
			case createdID != "" && createdID != entityID:
				metadata["resultId"] = createdID
			}
			if act.EntityType == "bom" {
				metadata["assetId"] = assetIDFromPath(r.URL.Path)
			}

			var reason string
			if outcome == outcomeFailure {
				reason = errMsg
			}

			event := &inventory.AuditEvent{
				EventType:  act.EventType(),
				Actor:      actor.FromContext(ctx),
				EntityType: act.EntityType,
				EntityID:   entityID,
				Action:     act.Verb,
				Outcome:    outcome,
				Reason:     reason,
				Metadata:   metadata,
				RequestID:  requestID,
				StatusCode: statusCode,
				CreatedAt:  startTime,
			}

			if err := store.Append(context.WithoutCancel(ctx), event); err != nil {
				logger.Error("failed to write audit event", "error", err, "requestID", requestID, "eventType", event.EventType)
			}
		})
	}
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	if code >= 200 && code < 300 {
		return outcomeSuccess
	}
	return outcomeFailure
}
