package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/assetdna/registry/pkg/inventory"
)

// Router creates a chi.Router for the read-only audit API.
func Router(store *inventory.AuditStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", ListEventsHandler(store))
	r.Get("/events/{eventId}", GetEventHandler(store))
	return r
}
