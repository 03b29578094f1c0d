package inventory

import (
	"context"
	"time"
)

const (
	DefaultReportMonths = 6
	MaxReportMonths     = 24
	reportMonthDays     = 30
	recentWindow        = 7 * 24 * time.Hour
)

// ChangeEntry is one snapshot within a change report.
type ChangeEntry struct {
	Date              time.Time `json:"date"`
	Version           string    `json:"version"`
	TotalComponents   int       `json:"totalComponents"`
	ComponentsAdded   int       `json:"componentsAdded"`
	ComponentsRemoved int       `json:"componentsRemoved"`
	ComponentsUpdated int       `json:"componentsUpdated"`
	Vulnerabilities   int       `json:"vulnerabilities"`
}

// TrendPoint is one sample of the vulnerability time series.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ChangeReport summarizes how an asset's BOM evolved over a window.
type ChangeReport struct {
	AssetID                string        `json:"assetId"`
	AssetName              string        `json:"assetName"`
	AssetURN               string        `json:"assetUrn"`
	PeriodStart            time.Time     `json:"periodStart"`
	PeriodEnd              time.Time     `json:"periodEnd"`
	TotalBOMVersions       int           `json:"totalBomVersions"`
	TotalComponentsAdded   int           `json:"totalComponentsAdded"`
	TotalComponentsRemoved int           `json:"totalComponentsRemoved"`
	TotalComponentsUpdated int           `json:"totalComponentsUpdated"`
	Changes                []ChangeEntry `json:"changes"`
	VulnerabilityTrend     []TrendPoint  `json:"vulnerabilityTrend"`
}

// SystemSummary holds registry-wide counters.
type SystemSummary struct {
	TotalAssets       int64     `json:"totalAssets"`
	TotalBOMSnapshots int64     `json:"totalBomSnapshots"`
	RecentBOMUpdates  int64     `json:"recentBomUpdates"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// ChangeReport aggregates the snapshots of assetID dated within the last
// months*30 days. months must be between 1 and 24.
func (s *BOMService) ChangeReport(ctx context.Context, assetID string, months int) (*ChangeReport, error) {
	if months < 1 || months > MaxReportMonths {
		return nil, invalidf("months must be between 1 and %d", MaxReportMonths)
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, notFound("asset", assetID)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -months*reportMonthDays)
	snapshots, err := s.store.SnapshotsBetween(ctx, assetID, start, end)
	if err != nil {
		return nil, err
	}

	report := &ChangeReport{
		AssetID:            asset.ID,
		AssetName:          asset.Name,
		AssetURN:           asset.URN,
		PeriodStart:        start,
		PeriodEnd:          end,
		TotalBOMVersions:   len(snapshots),
		Changes:            make([]ChangeEntry, 0, len(snapshots)),
		VulnerabilityTrend: make([]TrendPoint, 0, len(snapshots)),
	}
	for _, snap := range snapshots {
		report.Changes = append(report.Changes, ChangeEntry{
			Date:              snap.BOMDate,
			Version:           snap.Version,
			TotalComponents:   snap.TotalComponents,
			ComponentsAdded:   snap.ComponentsAdded,
			ComponentsRemoved: snap.ComponentsRemoved,
			ComponentsUpdated: snap.ComponentsUpdated,
			Vulnerabilities:   snap.TotalVulnerabilities,
		})
		report.TotalComponentsAdded += snap.ComponentsAdded
		report.TotalComponentsRemoved += snap.ComponentsRemoved
		report.TotalComponentsUpdated += snap.ComponentsUpdated
		report.VulnerabilityTrend = append(report.VulnerabilityTrend, TrendPoint{Date: snap.BOMDate, Count: snap.TotalVulnerabilities})
	}
	return report, nil
}

// Summary returns registry-wide asset and snapshot counts.
func (s *BOMService) Summary(ctx context.Context) (*SystemSummary, error) {
	now := s.now().UTC()
	assets, err := s.store.CountAssets(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountSnapshots(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	recent, err := s.store.CountSnapshots(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, err
	}
	return &SystemSummary{TotalAssets: assets, TotalBOMSnapshots: total, RecentBOMUpdates: recent, GeneratedAt: now}, nil
}
