package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/assetdna/registry/pkg/actor"
	"github.com/assetdna/registry/pkg/inventory"
)

// IdempotencyHeader lets clients retry an enqueue without creating a second job.
const IdempotencyHeader = "Idempotency-Key"

// EnqueueImportHandler handles POST /api/v1/jobs/import
// The body is the import document; ?format=json|yaml, or a YAML Content-Type,
// selects the decoder. The document is parsed up front so malformed input is
// rejected before it is queued.
func EnqueueImportHandler(store *JobStore, cfg *JobConfig) http.HandlerFunc {
	if cfg == nil {
		cfg = DefaultJobConfig()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := inventory.ParseTransferFormat(requestFormat(r))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("import document exceeds %d bytes", cfg.MaxPayloadBytes))
				return
			}
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
			return
		}

		rows, err := inventory.ParseImportRows(format, body)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if len(rows) == 0 {
			writeError(w, http.StatusBadRequest, "import document contains no rows")
			return
		}

		job := &ImportJob{
			ID:          uuid.NewString(),
			RequestedBy: actor.FromContext(r.Context()),
			Format:      string(format),
			Payload:     string(body),
			TotalRows:   len(rows),
		}
		if key := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); key != "" {
			job.IdempotencyKey = &key
		}

		queued, created, err := store.Enqueue(r.Context(), job)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue import: %v", err))
			return
		}

		status := http.StatusAccepted
		if !created {
			status = http.StatusOK
		}
		writeJSON(w, status, jobToResponse(queued))
	}
}

func requestFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return string(inventory.TransferYAML)
	}
	return string(inventory.TransferJSON)
}

// GetJobHandler handles GET /api/v1/jobs/import/{jobId}
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		job, err := store.Get(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}

		resp := jobToResponse(job)
		resp.RowErrors = job.RowErrors
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListJobsHandler handles GET /api/v1/jobs/import
// Query params: state, requestedBy, pageSize, pageToken
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := JobListFilter{
			State:       q.Get("state"),
			RequestedBy: q.Get("requestedBy"),
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
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
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobs := make([]jobResponse, len(records))
		for i := range records {
			jobs[i] = jobToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobs,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /api/v1/jobs/import/{jobId}/cancel
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		if err := store.Cancel(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, ErrJobNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, ErrNotCancelable):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to cancel job: %v", err))
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"id":     jobID,
		})
	}
}

// jobResponse is the API response for an import job.
type jobResponse struct {
	ID           string               `json:"id"`
	RequestedBy  string               `json:"requestedBy"`
	RequestedAt  string               `json:"requestedAt"`
	State        string               `json:"state"`
	Format       string               `json:"format"`
	Message      string               `json:"message,omitempty"`
	StartedAt    string               `json:"startedAt,omitempty"`
	FinishedAt   string               `json:"finishedAt,omitempty"`
	AttemptCount int                  `json:"attemptCount"`
	LastError    string               `json:"lastError,omitempty"`
	TotalRows    int                  `json:"totalRows"`
	ImportedRows int                  `json:"importedRows"`
	FailedRows   int                  `json:"failedRows"`
	RowErrors    []inventory.RowError `json:"rowErrors,omitempty"`
	DurationMs   int64                `json:"durationMs,omitempty"`
}

func jobToResponse(job *ImportJob) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		RequestedBy:  job.RequestedBy,
		RequestedAt:  job.RequestedAt.UTC().Format(time.RFC3339),
		State:        string(job.State),
		Format:       job.Format,
		Message:      job.Message,
		AttemptCount: job.AttemptCount,
		LastError:    job.LastError,
		TotalRows:    job.TotalRows,
		ImportedRows: job.ImportedRows,
		FailedRows:   job.FailedRows,
		DurationMs:   job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.UTC().Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
