package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// DefaultAssetTypes is the catalog of hierarchy levels seeded at startup.
func DefaultAssetTypes() []AssetType {
	return []AssetType{
		{Name: "Domain / System of Systems", Description: "Highest level grouping of multiple systems", Level: 1, CanHaveBOM: false},
		{Name: "System / Environment", Description: "Complete system or environment", Level: 2, CanHaveBOM: true},
		{Name: "Subsystem", Description: "Major functional component of a system", Level: 3, CanHaveBOM: true},
		{Name: "Component / Segment", Description: "Discrete component or segment", Level: 4, CanHaveBOM: true},
		{Name: "Configuration Item (CI)", Description: "Generic configuration item", Level: 5, CanHaveBOM: true},
		{Name: "Hardware CI", Description: "Hardware configuration item", Level: 5, CanHaveBOM: true},
		{Name: "Software CI", Description: "Software configuration item", Level: 5, CanHaveBOM: true},
		{Name: "Firmware CI", Description: "Firmware configuration item", Level: 5, CanHaveBOM: true},
	}
}

// SeedAssetTypes inserts the default asset types. Existing names are left untouched.
func (s *GormStore) SeedAssetTypes(ctx context.Context) error {
	types := DefaultAssetTypes()
	for i := range types {
		types[i].ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&types).Error
	if err != nil {
		return fmt.Errorf("seed asset types: %w", err)
	}
	return nil
}
