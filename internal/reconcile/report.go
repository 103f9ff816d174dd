package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/offloadops/offload/internal/domain"
)

// BuildReport splits the catalog's migrated records and the remote index
// into consistent pairs, records with no backing object, and objects with
// no owning record.
func BuildReport(index *domain.RemoteIndex, migrated []domain.MigratedRecord) *domain.DiscrepancyReport {
	report := &domain.DiscrepancyReport{
		Generation: index.Generation,
		ScannedAt:  index.ScannedAt,
	}

	claimed := make(map[string]struct{}, len(migrated))
	for _, rec := range migrated {
		if _, found := index.Lookup(rec.LocalPath); found {
			report.Consistent = append(report.Consistent, rec)
		} else {
			report.OrphanRecords = append(report.OrphanRecords, rec)
		}
		claimed[rec.LocalPath] = struct{}{}
	}

	for rel, obj := range index.Objects {
		if _, ok := claimed[rel]; !ok {
			report.OrphanObjects = append(report.OrphanObjects, obj)
		}
	}

	sort.Slice(report.Consistent, func(i, j int) bool {
		return report.Consistent[i].AssetID < report.Consistent[j].AssetID
	})
	sort.Slice(report.OrphanRecords, func(i, j int) bool {
		return report.OrphanRecords[i].AssetID < report.OrphanRecords[j].AssetID
	})
	sort.Slice(report.OrphanObjects, func(i, j int) bool {
		return report.OrphanObjects[i].Key < report.OrphanObjects[j].Key
	})

	return report
}

// Report compares the remote store with the catalog without mutating either.
// It reuses the cached index when one is fresh.
func (w *Workflow) Report(ctx context.Context) (*domain.DiscrepancyReport, error) {
	if err := w.ensureIndex(ctx); err != nil {
		return nil, err
	}
	migrated, err := w.assets.ListMigrated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list migrated records: %w", err)
	}
	return BuildReport(w.index, migrated), nil
}
