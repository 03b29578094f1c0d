package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBOMType      = "SBOM"
	defaultImportMethod = "file_upload"
)

// BOMService records BOM snapshots for leaf assets and derives the
// differences between them.
type BOMService struct {
	store    Store
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewBOMService creates a BOMService. A nil cfg uses DefaultConfig.
func NewBOMService(store Store, cfg *Config, logger *slog.Logger) *BOMService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := *cfg
	c.applyDefaults()
	return &BOMService{store: store, maxBytes: c.MaxBOMBytes, logger: logger, now: time.Now}
}

// UploadBOMInput is one BOM upload for an asset.
type UploadBOMInput struct {
	AssetID      string
	Document     []byte
	Version      string
	BOMType      string
	Source       string
	ImportMethod string
}

// UploadBOM stores a new snapshot for a leaf asset together with its
// component rows and the difference against the asset's latest snapshot.
func (s *BOMService) UploadBOM(ctx context.Context, in UploadBOMInput) (_ *BOMHistory, err error) {
	format := BOMFormat("unknown")
	defer func() { bomUploadTotal.WithLabelValues(string(format), outcomeLabel(err)).Inc() }()

	version := strings.TrimSpace(in.Version)
	var snapshot *BOMHistory
	err = s.store.Transaction(ctx, func(tx Store) error {
		asset, err := tx.GetAsset(ctx, in.AssetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return notFound("asset", in.AssetID)
		}
		hasChildren, err := tx.HasChildren(ctx, asset.ID)
		if err != nil {
			return err
		}
		if hasChildren {
			return invalidf("BOMs can only be uploaded to leaf assets; %q has children", asset.Name)
		}
		assetType, err := tx.GetAssetType(ctx, asset.AssetTypeID)
		if err != nil {
			return err
		}
		if assetType != nil && !assetType.CanHaveBOM {
			return invalidf("asset type %q cannot carry a BOM", assetType.Name)
		}
		if version == "" {
			return invalidf("BOM version label is required")
		}
		if s.maxBytes > 0 && int64(len(in.Document)) > s.maxBytes {
			return invalidf("BOM document exceeds %d bytes", s.maxBytes)
		}

		doc, err := DecodeDocument(in.Document)
		if err != nil {
			return err
		}
		format = DetectFormat(doc)
		components, err := ExtractComponents(format, doc)
		if err != nil {
			return err
		}
		items := make([]BOMItem, len(components))
		for i, c := range components {
			items[i] = BOMItem{
				ID:            uuid.NewString(),
				ComponentID:   c.ID,
				ComponentName: c.Name,
				ComponentType: c.Type,
				Version:       c.Version,
				License:       c.License,
				RiskScore:     c.RiskScore,
				Properties:    JSONAny(c.Raw),
			}
		}

		var previous []BOMItem
		latest, err := tx.LatestSnapshot(ctx, asset.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			if previous, err = tx.SnapshotItems(ctx, latest.ID); err != nil {
				return err
			}
		}
		diff := Diff(items, previous)

		bomType := in.BOMType
		if bomType == "" {
			bomType = defaultBOMType
		}
		method := in.ImportMethod
		if method == "" {
			method = defaultImportMethod
		}
		snapshot = &BOMHistory{
			ID:                   uuid.NewString(),
			AssetID:              asset.ID,
			Version:              version,
			BOMDate:              s.now().UTC(),
			BOMType:              bomType,
			Format:               format,
			Document:             JSONAny(doc),
			TotalComponents:      len(items),
			TotalVulnerabilities: countVulnerabilities(doc),
			TotalLicenses:        countLicenses(components),
			ChangeSummary:        diff.Summary(),
			ComponentsAdded:      diff.Added,
			ComponentsRemoved:    diff.Removed,
			ComponentsUpdated:    diff.Updated,
			Source:               in.Source,
			ImportMethod:         method,
		}
		return tx.SaveSnapshot(ctx, snapshot, items)
	})
	if err != nil {
		return nil, err
	}
	bomComponents.Observe(float64(snapshot.TotalComponents))
	s.logger.Info("bom snapshot stored",
		"asset", snapshot.AssetID, "snapshot", snapshot.ID, "format", snapshot.Format,
		"components", snapshot.TotalComponents, "changes", snapshot.ChangeSummary)
	return snapshot, nil
}

// DiffBOMs re-derives the difference between any two stored snapshots.
func (s *BOMService) DiffBOMs(ctx context.Context, currentID, previousID string) (*DiffResult, error) {
	current, err := s.store.GetSnapshot(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFound("BOM snapshot", currentID)
	}
	previous, err := s.store.GetSnapshot(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, notFound("BOM snapshot", previousID)
	}
	currentItems, err := s.store.SnapshotItems(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	previousItems, err := s.store.SnapshotItems(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	diff := Diff(currentItems, previousItems)
	return &diff, nil
}

// ListHistory returns the snapshots of an asset, newest first.
func (s *BOMService) ListHistory(ctx context.Context, assetID string, limit, offset int) ([]BOMHistory, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, notFound("asset", assetID)
	}
	return s.store.ListSnapshots(ctx, assetID, limit, offset)
}

// SnapshotDetail is a snapshot together with its component rows.
type SnapshotDetail struct {
	*BOMHistory
	Components []BOMItem `json:"components"`
}

// GetSnapshot returns one snapshot of an asset with its components.
func (s *BOMService) GetSnapshot(ctx context.Context, assetID, snapshotID string) (*SnapshotDetail, error) {
	snapshot, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.AssetID != assetID {
		return nil, notFound("BOM snapshot", snapshotID)
	}
	items, err := s.store.SnapshotItems(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	return &SnapshotDetail{BOMHistory: snapshot, Components: items}, nil
}

// DeleteSnapshot removes one snapshot of an asset.
func (s *BOMService) DeleteSnapshot(ctx context.Context, assetID, snapshotID string) error {
	return s.store.Transaction(ctx, func(tx Store) error {
		snapshot, err := tx.GetSnapshot(ctx, snapshotID)
		if err != nil {
			return err
		}
		if snapshot == nil || snapshot.AssetID != assetID {
			return notFound("BOM snapshot", snapshotID)
		}
		return tx.DeleteSnapshot(ctx, snapshotID)
	})
}
