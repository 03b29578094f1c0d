package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/assetdna/registry/pkg/inventory"
)

// ListEventsHandler handles GET /api/v1/audit/events
// Query params: eventType, actor, entityId, pageSize, pageToken
func ListEventsHandler(store *inventory.AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := inventory.AuditFilter{
			EventType: q.Get("eventType"),
			Actor:     q.Get("actor"),
			EntityID:  q.Get("entityId"),
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			v, err := strconv.Atoi(ps)
			if err != nil || v <= 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid pageSize %q", ps))
				return
			}
			pageSize = v
		}

		pageToken := q.Get("pageToken")
		if pageToken != "" {
			if _, err := time.Parse(time.RFC3339Nano, pageToken); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid pageToken %q", pageToken))
				return
			}
		}

		records, nextToken, total, err := store.List(r.Context(), filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]auditEventResponse, len(records))
		for i, rec := range records {
			events[i] = recordToResponse(rec)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// GetEventHandler handles GET /api/v1/audit/events/{eventId}
func GetEventHandler(store *inventory.AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		if eventID == "" {
			writeError(w, http.StatusBadRequest, "missing event ID")
			return
		}

		record, err := store.Get(r.Context(), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("audit event %q not found", eventID))
			return
		}

		writeJSON(w, http.StatusOK, recordToResponse(*record))
	}
}

type auditEventResponse struct {
	ID         string         `json:"id"`
	EventType  string         `json:"eventType"`
	Actor      string         `json:"actor"`
	EntityType string         `json:"entityType,omitempty"`
	EntityID   string         `json:"entityId,omitempty"`
	Action     string         `json:"action,omitempty"`
	Outcome    string         `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	StatusCode int            `json:"statusCode,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

func recordToResponse(rec inventory.AuditEvent) auditEventResponse {
	return auditEventResponse{
		ID:         rec.ID,
		EventType:  rec.EventType,
		Actor:      rec.Actor,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Outcome:    rec.Outcome,
		Reason:     rec.Reason,
		RequestID:  rec.RequestID,
		StatusCode: rec.StatusCode,
		Metadata:   map[string]any(rec.Metadata),
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
