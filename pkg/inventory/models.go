// Package inventory implements the asset hierarchy and BOM snapshot core of
// the registry: the asset tree with its derived URNs and sibling-name
// invariants, the Move/Copy/Delete mutations over that tree, and the BOM
// snapshot differ used for change and vulnerability trend reports.
package inventory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	bytes, err := jsonBytes(value)
	if err != nil || bytes == nil {
		*s = nil
		return err
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	bytes, err := jsonBytes(value)
	if err != nil || bytes == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// AssetStatus is the operational status of an asset.
type AssetStatus string

const (
	StatusActive     AssetStatus = "active"
	StatusInactive   AssetStatus = "inactive"
	StatusDeprecated AssetStatus = "deprecated"
)

// Valid reports whether s is one of the known statuses.
func (s AssetStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDeprecated:
		return true
	}
	return false
}

// AssetType is a pre-seeded, read-only level of the asset hierarchy.
type AssetType struct {
	ID          string `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Name        string `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Level       int    `gorm:"column:level;not null" json:"level"`
	CanHaveBOM  bool   `gorm:"column:can_have_bom;not null" json:"canHaveBom"`
}

// TableName returns the GORM table name.
func (AssetType) TableName() string { return "asset_types" }

// Asset is a node of the inventory tree. Children are never held in memory;
// they are found by querying on the parent key.
type Asset struct {
	ID             string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	URN            string          `gorm:"column:urn;type:varchar(255);uniqueIndex:idx_asset_urn;not null" json:"urn"`
	Name           string          `gorm:"column:name;type:varchar(255);uniqueIndex:idx_asset_name_parent,priority:1;not null" json:"name"`
	Description    string          `gorm:"column:description;type:text" json:"description,omitempty"`
	AssetTypeID    string          `gorm:"column:asset_type_id;type:varchar(36);index;not null" json:"assetTypeId"`
	ParentID       *string         `gorm:"column:parent_id;type:varchar(36);index" json:"parentId"`
	ParentKey      string          `gorm:"column:parent_key;type:varchar(36);uniqueIndex:idx_asset_name_parent,priority:2;not null;default:''" json:"-"`
	Properties     JSONAny         `gorm:"column:properties;type:text" json:"properties"`
	Tags           JSONStringSlice `gorm:"column:tags;type:text" json:"tags"`
	Status         AssetStatus     `gorm:"column:status;type:varchar(50);not null;default:active" json:"status"`
	LifecycleStage string          `gorm:"column:lifecycle_stage;type:varchar(50)" json:"lifecycleStage,omitempty"`
	ExternalID     string          `gorm:"column:external_id;type:varchar(255)" json:"externalId,omitempty"`
	ExternalSystem string          `gorm:"column:external_system;type:varchar(100)" json:"externalSystem,omitempty"`
	Version        string          `gorm:"column:version;type:varchar(50)" json:"version,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updatedAt"`
	CreatedBy      string          `gorm:"column:created_by;type:varchar(255)" json:"createdBy,omitempty"`
	UpdatedBy      string          `gorm:"column:updated_by;type:varchar(255)" json:"updatedBy,omitempty"`
}

// TableName returns the GORM table name.
func (Asset) TableName() string { return "assets" }

// BeforeSave keeps the storage-only parent key in step with ParentID so the
// (name, parent_key) unique index also covers root assets.
func (a *Asset) BeforeSave(_ *gorm.DB) error {
	a.ParentKey = parentKey(a.ParentID)
	return nil
}

// IsRoot reports whether the asset has no parent.
func (a *Asset) IsRoot() bool { return a.ParentID == nil }

func parentKey(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}

func sameParent(a, b *string) bool {
	return parentKey(a) == parentKey(b)
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// BOMFormat is the detected document format of an uploaded BOM.
type BOMFormat string

const (
	FormatCycloneDX BOMFormat = "CycloneDX"
	FormatSPDX      BOMFormat = "SPDX"
	FormatCustom    BOMFormat = "custom"
)

// BOMHistory is one immutable BOM snapshot uploaded for an asset.
type BOMHistory struct {
	ID                   string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	AssetID              string    `gorm:"column:asset_id;type:varchar(36);index:idx_bom_history_asset_date,priority:1;not null" json:"assetId"`
	Version              string    `gorm:"column:bom_version;type:varchar(50);not null" json:"version"`
	BOMDate              time.Time `gorm:"column:bom_date;index:idx_bom_history_asset_date,priority:2;not null" json:"date"`
	BOMType              string    `gorm:"column:bom_type;type:varchar(50);default:SBOM" json:"type"`
	Format               BOMFormat `gorm:"column:bom_format;type:varchar(50);not null" json:"format"`
	Document             JSONAny   `gorm:"column:bom_data;type:text;not null" json:"document,omitempty"`
	TotalComponents      int       `gorm:"column:total_components" json:"totalComponents"`
	TotalVulnerabilities int       `gorm:"column:total_vulnerabilities" json:"totalVulnerabilities"`
	TotalLicenses        int       `gorm:"column:total_licenses" json:"totalLicenses"`
	ChangeSummary        string    `gorm:"column:change_summary;type:text" json:"changeSummary,omitempty"`
	ComponentsAdded      int       `gorm:"column:components_added" json:"componentsAdded"`
	ComponentsRemoved    int       `gorm:"column:components_removed" json:"componentsRemoved"`
	ComponentsUpdated    int       `gorm:"column:components_updated" json:"componentsUpdated"`
	Source               string    `gorm:"column:source;type:varchar(100)" json:"source,omitempty"`
	ImportMethod         string    `gorm:"column:import_method;type:varchar(50)" json:"importMethod,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (BOMHistory) TableName() string { return "bom_history" }

// BOMItem is one component row of a BOM snapshot.
type BOMItem struct {
	ID            string   `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	BOMHistoryID  string   `gorm:"column:bom_history_id;type:varchar(36);uniqueIndex:idx_bom_item_component,priority:1;not null" json:"-"`
	ComponentID   string   `gorm:"column:component_id;type:varchar(255);uniqueIndex:idx_bom_item_component,priority:2;not null" json:"id"`
	ComponentName string   `gorm:"column:component_name;type:varchar(255);index;not null" json:"name"`
	ComponentType string   `gorm:"column:component_type;type:varchar(100)" json:"type,omitempty"`
	Version       string   `gorm:"column:version;type:varchar(100)" json:"version,omitempty"`
	License       string   `gorm:"column:license;type:varchar(100)" json:"license,omitempty"`
	RiskScore     *float64 `gorm:"column:risk_score" json:"riskScore,omitempty"`
	Properties    JSONAny  `gorm:"column:properties;type:text" json:"properties,omitempty"`
}

// TableName returns the GORM table name.
func (BOMItem) TableName() string { return "bom_items" }

// AuditEvent is an immutable record of a mutation performed through the API.
type AuditEvent struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EventType  string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor      string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	EntityType string    `gorm:"column:entity_type"`
	EntityID   string    `gorm:"column:entity_id;index:idx_audit_entity_time,priority:1"`
	Action     string    `gorm:"column:action"`
	Outcome    string    `gorm:"column:outcome;not null"` // success, failure
	Reason     string    `gorm:"column:reason"`
	Metadata   JSONAny   `gorm:"column:metadata;type:text"`
	RequestID  string    `gorm:"column:request_id;index"`
	StatusCode int       `gorm:"column:status_code"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_entity_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (AuditEvent) TableName() string { return "audit_events" }

// AllModels lists every table owned by this package, in migration order.
func AllModels() []any {
	return []any{&AssetType{}, &Asset{}, &BOMHistory{}, &BOMItem{}, &AuditEvent{}}
}

// cloneJSON returns a deep copy of a decoded JSON value so copies never share
// nested maps or slices with their source.
func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneJSON(val)
		}
		return out
	case JSONAny:
		return JSONAny(cloneJSON(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneJSON(val)
		}
		return out
	default:
		return v
	}
}

func cloneProperties(p JSONAny) JSONAny {
	if p == nil {
		return JSONAny{}
	}
	return cloneJSON(p).(JSONAny)
}

func cloneTags(t JSONStringSlice) JSONStringSlice {
	out := make(JSONStringSlice, len(t))
	copy(out, t)
	return out
}
