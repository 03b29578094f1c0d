package jobs

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the import job API.
func Router(store *JobStore, cfg *JobConfig) chi.Router {
	r := chi.NewRouter()
	r.Post("/import", EnqueueImportHandler(store, cfg))
	r.Get("/import", ListJobsHandler(store))
	r.Get("/import/{jobId}", GetJobHandler(store))
	r.Post("/import/{jobId}/cancel", CancelJobHandler(store))
	return r
}
