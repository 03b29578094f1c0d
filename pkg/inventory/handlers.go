package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assetdna/registry/pkg/actor"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type createAssetRequest struct {
	Name           string         `json:"name" validate:"required,max=255"`
	Description    string         `json:"description"`
	AssetTypeID    string         `json:"assetTypeId" validate:"required"`
	ParentID       *string        `json:"parentId" validate:"omitempty,min=1"`
	Properties     map[string]any `json:"properties"`
	Tags           []string       `json:"tags" validate:"omitempty,dive,max=100"`
	Status         string         `json:"status" validate:"omitempty,oneof=active inactive deprecated"`
	LifecycleStage string         `json:"lifecycleStage" validate:"max=50"`
	ExternalID     string         `json:"externalId" validate:"max=255"`
	ExternalSystem string         `json:"externalSystem" validate:"max=100"`
	Version        string         `json:"version" validate:"max=50"`
}

type updateAssetRequest struct {
	Name           *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description    *string        `json:"description"`
	AssetTypeID    *string        `json:"assetTypeId" validate:"omitempty,min=1"`
	Properties     map[string]any `json:"properties"`
	Tags           []string       `json:"tags" validate:"omitempty,dive,max=100"`
	Status         *string        `json:"status" validate:"omitempty,oneof=active inactive deprecated"`
	LifecycleStage *string        `json:"lifecycleStage" validate:"omitempty,max=50"`
	ExternalID     *string        `json:"externalId" validate:"omitempty,max=255"`
	ExternalSystem *string        `json:"externalSystem" validate:"omitempty,max=100"`
	Version        *string        `json:"version" validate:"omitempty,max=50"`
}

// relocateRequest is the body of move and copy. A null or absent
// newParentId targets the root level.
type relocateRequest struct {
	NewParentID *string `json:"newParentId" validate:"omitempty,min=1"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Size  int `json:"size"`
}

func listAssetTypesHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := tree.ListAssetTypes(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[AssetType]{Items: types, Size: len(types)})
	}
}

func getTreeHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth, err := intQuery(r, "max_depth", DefaultTreeDepth)
		if err != nil || depth < 1 || depth > MaxTreeViewDepth {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("max_depth must be between 1 and %d", MaxTreeViewDepth))
			return
		}
		nodes, err := tree.GetTree(r.Context(), optionalQuery(r, "parent_id"), depth)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	}
}

func listAssetsHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQuery(r, "limit", 100)
		if err != nil || limit < 1 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		offset, err := intQuery(r, "offset", 0)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		q := r.URL.Query()
		assets, err := tree.ListAssets(r.Context(), AssetFilter{
			ParentID:    optionalQuery(r, "parent_id"),
			AssetTypeID: q.Get("asset_type_id"),
			Status:      AssetStatus(q.Get("status")),
			Search:      q.Get("search"),
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[Asset]{Items: assets, Size: len(assets)})
	}
}

func getAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := tree.GetAsset(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func createAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssetRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		asset, err := tree.CreateAsset(r.Context(), CreateAssetInput{
			Name:           req.Name,
			Description:    req.Description,
			AssetTypeID:    req.AssetTypeID,
			ParentID:       req.ParentID,
			Properties:     req.Properties,
			Tags:           req.Tags,
			Status:         AssetStatus(req.Status),
			LifecycleStage: req.LifecycleStage,
			ExternalID:     req.ExternalID,
			ExternalSystem: req.ExternalSystem,
			Version:        req.Version,
			Actor:          actor.FromContext(r.Context()),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
	}
}

func updateAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAssetRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		in := UpdateAssetInput{
			Name:           req.Name,
			Description:    req.Description,
			AssetTypeID:    req.AssetTypeID,
			Properties:     req.Properties,
			Tags:           req.Tags,
			LifecycleStage: req.LifecycleStage,
			ExternalID:     req.ExternalID,
			ExternalSystem: req.ExternalSystem,
			Version:        req.Version,
			Actor:          actor.FromContext(r.Context()),
		}
		if req.Status != nil {
			status := AssetStatus(*req.Status)
			in.Status = &status
		}
		asset, err := tree.UpdateAsset(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func deleteAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cascade, err := boolQuery(r, "cascade")
		if err != nil {
			writeError(w, http.StatusBadRequest, "cascade must be a boolean")
			return
		}
		id := chi.URLParam(r, "id")
		deleted, err := tree.DeleteAsset(r.Context(), id, cascade)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": deleted})
	}
}

func moveAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req relocateRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		asset, err := tree.MoveAsset(r.Context(), chi.URLParam(r, "id"), req.NewParentID, actor.FromContext(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func copyAssetHandler(tree *Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req relocateRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		asset, err := tree.CopyAsset(r.Context(), chi.URLParam(r, "id"), req.NewParentID, actor.FromContext(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
	}
}

// uploadBOMHandler accepts either a multipart form with a "file" part and
// version/bom_type/source fields, or the raw document as the request body
// with those values as query parameters.
func uploadBOMHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, boms.maxBytes+1<<20)
		in := UploadBOMInput{AssetID: chi.URLParam(r, "id")}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(8 << 20); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				writeError(w, http.StatusBadRequest, "missing file part")
				return
			}
			defer file.Close()
			if in.Document, err = io.ReadAll(file); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("read file: %v", err))
				return
			}
			in.Version = r.FormValue("version")
			in.BOMType = r.FormValue("bom_type")
			in.Source = r.FormValue("source")
			in.ImportMethod = "file_upload"
		} else {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
				return
			}
			q := r.URL.Query()
			in.Document = body
			in.Version = q.Get("version")
			in.BOMType = q.Get("bom_type")
			in.Source = q.Get("source")
			in.ImportMethod = "api"
		}

		snapshot, err := boms.UploadBOM(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		snapshot.Document = nil
		writeJSON(w, http.StatusCreated, snapshot)
	}
}

func listBOMHistoryHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQuery(r, "limit", 50)
		if err != nil || limit < 1 || limit > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		offset, err := intQuery(r, "offset", 0)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		history, err := boms.ListHistory(r.Context(), chi.URLParam(r, "id"), limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[BOMHistory]{Items: history, Size: len(history)})
	}
}

func getBOMHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := boms.GetSnapshot(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bomId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func deleteBOMHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bomID := chi.URLParam(r, "bomId")
		if err := boms.DeleteSnapshot(r.Context(), chi.URLParam(r, "id"), bomID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func diffBOMHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		current, previous := q.Get("current"), q.Get("previous")
		if current == "" || previous == "" {
			writeError(w, http.StatusBadRequest, "current and previous snapshot ids are required")
			return
		}
		diff, err := boms.DiffBOMs(r.Context(), current, previous)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, diff)
	}
}

func changeReportHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		months, err := intQuery(r, "months", DefaultReportMonths)
		if err != nil {
			writeError(w, http.StatusBadRequest, "months must be an integer")
			return
		}
		report, err := boms.ChangeReport(r.Context(), chi.URLParam(r, "id"), months)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func summaryHandler(boms *BOMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := boms.Summary(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func exportHandler(importer *Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := ParseTransferFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rows, err := importer.ExportRows(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		data, err := MarshalRows(format, rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("encode export: %v", err))
			return
		}
		contentType := "application/json"
		if format == TransferYAML {
			contentType = "application/yaml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=assets.%s", format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. It writes a 400 response and returns false on failure. An
// empty body decodes as the zero value.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return false
	}
	return true
}

func optionalQuery(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func boolQuery(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, ErrParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error: " + msg
	}
	writeError(w, status, msg)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
