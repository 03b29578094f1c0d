package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// deleteChunk bounds the size of IN lists issued by DeleteSubtree.
const deleteChunk = 500

// Store is the persistence contract used by Tree and BOMService. Lookups
// return nil, nil when the row does not exist.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetAsset(ctx context.Context, id string) (*Asset, error)
	GetChildren(ctx context.Context, parentID *string) ([]Asset, error)
	ChildIDs(ctx context.Context, parentID string) ([]string, error)
	HasChildren(ctx context.Context, id string) (bool, error)
	FindByNameAndParent(ctx context.Context, name string, parentID *string) (*Asset, error)
	FindByURN(ctx context.Context, urn string) (*Asset, error)
	InsertAsset(ctx context.Context, asset *Asset) error
	SaveAsset(ctx context.Context, asset *Asset) error
	DeleteSubtree(ctx context.Context, ids []string) error
	ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error)
	CountAssets(ctx context.Context) (int64, error)

	GetAssetType(ctx context.Context, id string) (*AssetType, error)
	FindAssetTypeByName(ctx context.Context, name string) (*AssetType, error)
	ListAssetTypes(ctx context.Context) ([]AssetType, error)

	LatestSnapshot(ctx context.Context, assetID string) (*BOMHistory, error)
	SaveSnapshot(ctx context.Context, snapshot *BOMHistory, items []BOMItem) error
	GetSnapshot(ctx context.Context, id string) (*BOMHistory, error)
	SnapshotItems(ctx context.Context, snapshotID string) ([]BOMItem, error)
	ListSnapshots(ctx context.Context, assetID string, limit, offset int) ([]BOMHistory, error)
	SnapshotsBetween(ctx context.Context, assetID string, from, to time.Time) ([]BOMHistory, error)
	CountSnapshots(ctx context.Context, since time.Time) (int64, error)
	SnapshotCounts(ctx context.Context, assetIDs []string) (map[string]int64, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// AssetFilter narrows ListAssets. Zero values match everything.
type AssetFilter struct {
	Name        string
	AssetTypeID string
	ParentID    *string
	Status      AssetStatus
	Search      string
	Limit       int
	Offset      int
}

// GormStore implements Store on top of GORM.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the inventory tables.
func (s *GormStore) AutoMigrate() error {
	for _, model := range AllModels() {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", model, err)
		}
	}
	return nil
}

// Transaction runs fn inside a database transaction bound to ctx. The Store
// passed to fn must be used for every call made within it.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) first(ctx context.Context, dest any, op string, query string, args ...any) (bool, error) {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// GetAsset returns the asset with the given id.
func (s *GormStore) GetAsset(ctx context.Context, id string) (*Asset, error) {
	var asset Asset
	ok, err := s.first(ctx, &asset, "get asset", "id = ?", id)
	if !ok {
		return nil, err
	}
	return &asset, nil
}

// GetChildren returns the direct children of parentID, or the roots when
// parentID is nil, ordered by name.
func (s *GormStore) GetChildren(ctx context.Context, parentID *string) ([]Asset, error) {
	var assets []Asset
	err := s.db.WithContext(ctx).Where("parent_key = ?", parentKey(parentID)).Order("name ASC").Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	return assets, nil
}

// ChildIDs returns only the ids of the direct children of parentID.
func (s *GormStore) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Asset{}).Where("parent_key = ?", parentID).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("get child ids: %w", err)
	}
	return ids, nil
}

// HasChildren reports whether any asset has id as its parent.
func (s *GormStore) HasChildren(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Asset{}).Where("parent_key = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("has children: %w", err)
	}
	return count > 0, nil
}

// FindByNameAndParent returns the sibling named name under parentID.
func (s *GormStore) FindByNameAndParent(ctx context.Context, name string, parentID *string) (*Asset, error) {
	var asset Asset
	ok, err := s.first(ctx, &asset, "find asset by name", "name = ? AND parent_key = ?", name, parentKey(parentID))
	if !ok {
		return nil, err
	}
	return &asset, nil
}

// FindByURN returns the asset carrying urn.
func (s *GormStore) FindByURN(ctx context.Context, urn string) (*Asset, error) {
	var asset Asset
	ok, err := s.first(ctx, &asset, "find asset by urn", "urn = ?", urn)
	if !ok {
		return nil, err
	}
	return &asset, nil
}

// InsertAsset creates a new asset row.
func (s *GormStore) InsertAsset(ctx context.Context, asset *Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(asset).Error
}

// SaveAsset writes every column of an existing asset.
func (s *GormStore) SaveAsset(ctx context.Context, asset *Asset) error {
	return s.db.WithContext(ctx).Save(asset).Error
}

// DeleteSubtree removes the given assets together with their BOM snapshots
// and snapshot items. Callers collect ids; no traversal happens here.
func (s *GormStore) DeleteSubtree(ctx context.Context, ids []string) error {
	db := s.db.WithContext(ctx)
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]

		snapshots := db.Model(&BOMHistory{}).Select("id").Where("asset_id IN ?", chunk)
		if err := db.Where("bom_history_id IN (?)", snapshots).Delete(&BOMItem{}).Error; err != nil {
			return fmt.Errorf("delete bom items: %w", err)
		}
		if err := db.Where("asset_id IN ?", chunk).Delete(&BOMHistory{}).Error; err != nil {
			return fmt.Errorf("delete bom history: %w", err)
		}
		if err := db.Where("id IN ?", chunk).Delete(&Asset{}).Error; err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
	}
	return nil
}

// ListAssets returns assets matching filter ordered by name.
func (s *GormStore) ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error) {
	query := s.db.WithContext(ctx).Model(&Asset{}).Order("name ASC, id ASC")
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.AssetTypeID != "" {
		query = query.Where("asset_type_id = ?", filter.AssetTypeID)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_key = ?", *filter.ParentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ? OR urn LIKE ?", like, like, like)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var assets []Asset
	if err := query.Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// CountAssets returns the total number of assets.
func (s *GormStore) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Asset{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}

// GetAssetType returns the asset type with the given id.
func (s *GormStore) GetAssetType(ctx context.Context, id string) (*AssetType, error) {
	var assetType AssetType
	ok, err := s.first(ctx, &assetType, "get asset type", "id = ?", id)
	if !ok {
		return nil, err
	}
	return &assetType, nil
}

// FindAssetTypeByName returns the asset type with the given name.
func (s *GormStore) FindAssetTypeByName(ctx context.Context, name string) (*AssetType, error) {
	var assetType AssetType
	ok, err := s.first(ctx, &assetType, "find asset type", "name = ?", name)
	if !ok {
		return nil, err
	}
	return &assetType, nil
}

// ListAssetTypes returns every asset type ordered by level then name.
func (s *GormStore) ListAssetTypes(ctx context.Context) ([]AssetType, error) {
	var types []AssetType
	if err := s.db.WithContext(ctx).Order("level ASC, name ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("list asset types: %w", err)
	}
	return types, nil
}

// LatestSnapshot returns the most recent snapshot for assetID.
func (s *GormStore) LatestSnapshot(ctx context.Context, assetID string) (*BOMHistory, error) {
	var snapshot BOMHistory
	err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).
		Order("bom_date DESC, created_at DESC").First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// SaveSnapshot inserts a snapshot and its items.
func (s *GormStore) SaveSnapshot(ctx context.Context, snapshot *BOMHistory, items []BOMItem) error {
	db := s.db.WithContext(ctx)
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if err := db.Create(snapshot).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].BOMHistoryID = snapshot.ID
	}
	if err := db.CreateInBatches(items, 200).Error; err != nil {
		return fmt.Errorf("save snapshot items: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot with the given id.
func (s *GormStore) GetSnapshot(ctx context.Context, id string) (*BOMHistory, error) {
	var snapshot BOMHistory
	ok, err := s.first(ctx, &snapshot, "get snapshot", "id = ?", id)
	if !ok {
		return nil, err
	}
	return &snapshot, nil
}

// SnapshotItems returns the component rows of a snapshot ordered by component id.
func (s *GormStore) SnapshotItems(ctx context.Context, snapshotID string) ([]BOMItem, error) {
	var items []BOMItem
	err := s.db.WithContext(ctx).Where("bom_history_id = ?", snapshotID).Order("component_id ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("snapshot items: %w", err)
	}
	return items, nil
}

// ListSnapshots returns snapshots for assetID, newest first, without their documents.
func (s *GormStore) ListSnapshots(ctx context.Context, assetID string, limit, offset int) ([]BOMHistory, error) {
	query := s.db.WithContext(ctx).Omit("bom_data").Where("asset_id = ?", assetID).
		Order("bom_date DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var snapshots []BOMHistory
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// SnapshotsBetween returns snapshots for assetID dated within [from, to], oldest first.
func (s *GormStore) SnapshotsBetween(ctx context.Context, assetID string, from, to time.Time) ([]BOMHistory, error) {
	var snapshots []BOMHistory
	err := s.db.WithContext(ctx).Omit("bom_data").
		Where("asset_id = ? AND bom_date >= ? AND bom_date <= ?", assetID, from, to).
		Order("bom_date ASC, created_at ASC").Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("snapshots between: %w", err)
	}
	return snapshots, nil
}

// CountSnapshots counts snapshots dated at or after since. A zero since counts all.
func (s *GormStore) CountSnapshots(ctx context.Context, since time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(&BOMHistory{})
	if !since.IsZero() {
		query = query.Where("bom_date >= ?", since)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

// SnapshotCounts returns the number of snapshots per asset id.
func (s *GormStore) SnapshotCounts(ctx context.Context, assetIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(assetIDs))
	if len(assetIDs) == 0 {
		return counts, nil
	}
	type row struct {
		AssetID string
		Total   int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&BOMHistory{}).
		Select("asset_id, COUNT(*) AS total").
		Where("asset_id IN ?", assetIDs).
		Group("asset_id").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("snapshot counts: %w", err)
	}
	for _, r := range rows {
		counts[r.AssetID] = r.Total
	}
	return counts, nil
}

// DeleteSnapshot removes a snapshot and its items.
func (s *GormStore) DeleteSnapshot(ctx context.Context, id string) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("bom_history_id = ?", id).Delete(&BOMItem{}).Error; err != nil {
		return fmt.Errorf("delete snapshot items: %w", err)
	}
	if err := db.Where("id = ?", id).Delete(&BOMHistory{}).Error; err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
