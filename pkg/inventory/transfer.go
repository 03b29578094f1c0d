package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TransferFormat selects the encoding of bulk import and export documents.
type TransferFormat string

const (
	TransferJSON TransferFormat = "json"
	TransferYAML TransferFormat = "yaml"
)

// ParseTransferFormat accepts "json", "yaml" or "yml".
func ParseTransferFormat(s string) (TransferFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return TransferJSON, nil
	case "yaml", "yml":
		return TransferYAML, nil
	}
	return "", invalidf("unsupported format %q", s)
}

// ImportRow is one asset in a bulk import or export document. Parents are
// referenced by name.
type ImportRow struct {
	ID             string         `json:"id,omitempty" yaml:"id,omitempty"`
	URN            string         `json:"urn,omitempty" yaml:"urn,omitempty"`
	Name           string         `json:"name" yaml:"name"`
	AssetType      string         `json:"asset_type" yaml:"asset_type"`
	ParentName     string         `json:"parent_name,omitempty" yaml:"parent_name,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Status         string         `json:"status,omitempty" yaml:"status,omitempty"`
	LifecycleStage string         `json:"lifecycle_stage,omitempty" yaml:"lifecycle_stage,omitempty"`
	ExternalID     string         `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	ExternalSystem string         `json:"external_system,omitempty" yaml:"external_system,omitempty"`
	Version        string         `json:"version,omitempty" yaml:"version,omitempty"`
	Properties     map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Tags           []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// RowError reports why one import row was not created.
type RowError struct {
	Row   int    `json:"row"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
}

// ParseImportRows decodes a JSON or YAML array of rows.
func ParseImportRows(format TransferFormat, data []byte) ([]ImportRow, error) {
	var rows []ImportRow
	var err error
	switch format {
	case TransferYAML:
		err = yaml.Unmarshal(data, &rows)
	default:
		err = json.Unmarshal(data, &rows)
	}
	if err != nil {
		return nil, parsef("decode import document: %v", err)
	}
	return rows, nil
}

// MarshalRows encodes rows for export.
func MarshalRows(format TransferFormat, rows []ImportRow) ([]byte, error) {
	if format == TransferYAML {
		return yaml.Marshal(rows)
	}
	return json.MarshalIndent(rows, "", "  ")
}

// Importer creates assets from import rows through the Tree so every row
// obeys the same invariants as an API create.
type Importer struct {
	tree  *Tree
	store Store
}

// NewImporter creates an Importer.
func NewImporter(tree *Tree, store Store) *Importer {
	return &Importer{tree: tree, store: store}
}

// ImportRows creates one asset per row. Rows may reference parents created
// earlier in the same document or already stored; a row whose parent appears
// later in the document is retried once that parent exists. Failures are
// reported per row and do not stop the import.
func (im *Importer) ImportRows(ctx context.Context, rows []ImportRow, actor string) ImportResult {
	result := ImportResult{Total: len(rows), Errors: []RowError{}}

	types, err := im.store.ListAssetTypes(ctx)
	if err != nil {
		for i, row := range rows {
			result.Errors = append(result.Errors, RowError{Row: i, Name: row.Name, Error: err.Error()})
		}
		result.Failed = len(rows)
		return result
	}
	typeIDs := make(map[string]string, len(types))
	for _, at := range types {
		typeIDs[at.Name] = at.ID
	}

	created := make(map[string]string)
	pending := make([]int, 0, len(rows))
	for i := range rows {
		pending = append(pending, i)
	}
	fail := func(i int, err error) {
		result.Failed++
		result.Errors = append(result.Errors, RowError{Row: i, Name: rows[i].Name, Error: err.Error()})
	}

	for len(pending) > 0 {
		if ctx.Err() != nil {
			for _, i := range pending {
				fail(i, ctx.Err())
			}
			break
		}
		var deferred []int
		for _, i := range pending {
			row := rows[i]
			typeID, ok := typeIDs[row.AssetType]
			if !ok {
				fail(i, fmt.Errorf("unknown asset type %q", row.AssetType))
				continue
			}
			var parentID *string
			if row.ParentName != "" {
				if id, ok := created[row.ParentName]; ok {
					parentID = &id
				} else if laterParent(rows, pending, i, row.ParentName) {
					deferred = append(deferred, i)
					continue
				} else {
					id, err := im.existingParent(ctx, row.ParentName)
					if err != nil {
						fail(i, err)
						continue
					}
					parentID = &id
				}
			}
			asset, err := im.tree.CreateAsset(ctx, CreateAssetInput{
				Name:           row.Name,
				Description:    row.Description,
				AssetTypeID:    typeID,
				ParentID:       parentID,
				Properties:     row.Properties,
				Tags:           row.Tags,
				Status:         AssetStatus(row.Status),
				LifecycleStage: row.LifecycleStage,
				ExternalID:     row.ExternalID,
				ExternalSystem: row.ExternalSystem,
				Version:        row.Version,
				Actor:          actor,
			})
			if err != nil {
				fail(i, err)
				continue
			}
			result.Imported++
			if _, dup := created[asset.Name]; !dup {
				created[asset.Name] = asset.ID
			}
		}
		if len(deferred) == len(pending) {
			for _, i := range deferred {
				fail(i, fmt.Errorf("parent %q was not created", rows[i].ParentName))
			}
			break
		}
		pending = deferred
	}
	return result
}

// laterParent reports whether another still-pending row creates name.
func laterParent(rows []ImportRow, pending []int, self int, name string) bool {
	for _, j := range pending {
		if j != self && rows[j].Name == name {
			return true
		}
	}
	return false
}

func (im *Importer) existingParent(ctx context.Context, name string) (string, error) {
	matches, err := im.store.ListAssets(ctx, AssetFilter{Name: name, Limit: 2})
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", notFound("parent asset", name)
	case 1:
		return matches[0].ID, nil
	default:
		return "", invalidf("parent name %q is ambiguous", name)
	}
}

// ExportRows returns every asset as an import row, parents before children.
func (im *Importer) ExportRows(ctx context.Context) ([]ImportRow, error) {
	types, err := im.store.ListAssetTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeNames := make(map[string]string, len(types))
	for _, at := range types {
		typeNames[at.ID] = at.Name
	}

	var rows []ImportRow
	type frame struct {
		parentID   *string
		parentName string
	}
	queue := []frame{{}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		children, err := im.store.GetChildren(ctx, f.parentID)
		if err != nil {
			return nil, err
		}
		for _, a := range children {
			rows = append(rows, ImportRow{
				ID:             a.ID,
				URN:            a.URN,
				Name:           a.Name,
				AssetType:      typeNames[a.AssetTypeID],
				ParentName:     f.parentName,
				Description:    a.Description,
				Status:         string(a.Status),
				LifecycleStage: a.LifecycleStage,
				ExternalID:     a.ExternalID,
				ExternalSystem: a.ExternalSystem,
				Version:        a.Version,
				Properties:     a.Properties,
				Tags:           a.Tags,
			})
			id := a.ID
			queue = append(queue, frame{parentID: &id, parentName: a.Name})
		}
	}
	return rows, nil
}
