package inventory

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the asset, BOM, report and export
// routes. cached, when non-nil, wraps the read-heavy tree and report routes.
func NewRouter(tree *Tree, boms *BOMService, importer *Importer, cached func(http.Handler) http.Handler) chi.Router {
	if cached == nil {
		cached = func(next http.Handler) http.Handler { return next }
	}
	r := chi.NewRouter()

	r.Get("/asset-types", listAssetTypesHandler(tree))

	r.Route("/assets", func(r chi.Router) {
		r.With(cached).Get("/tree", getTreeHandler(tree))
		r.Get("/", listAssetsHandler(tree))
		r.Post("/", createAssetHandler(tree))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAssetHandler(tree))
			r.Patch("/", updateAssetHandler(tree))
			r.Delete("/", deleteAssetHandler(tree))
			r.Put("/move", moveAssetHandler(tree))
			r.Post("/copy", copyAssetHandler(tree))

			r.Post("/bom", uploadBOMHandler(boms))
			r.Get("/bom/history", listBOMHistoryHandler(boms))
			r.Get("/bom/{bomId}", getBOMHandler(boms))
			r.Delete("/bom/{bomId}", deleteBOMHandler(boms))
		})
	})

	r.Get("/bom/diff", diffBOMHandler(boms))

	r.Route("/reports", func(r chi.Router) {
		r.Use(cached)
		r.Get("/assets/{id}/changes", changeReportHandler(boms))
		r.Get("/summary", summaryHandler(boms))
	})

	r.Get("/export", exportHandler(importer))

	return r
}
