package reconcile

import (
	"context"
	"testing"

	"github.com/offloadops/offload/internal/domain"
)

func TestBuildReportThreeWaySplit(t *testing.T) {
	// Remote has {a, b}; the catalog claims {a, c}.
	index := indexOf("a.jpg", "b.jpg")
	migrated := []domain.MigratedRecord{
		{AssetID: 1, LocalPath: "a.jpg", RemoteKey: "media/s3/test/a.jpg"},
		{AssetID: 3, LocalPath: "c.jpg", RemoteKey: "media/s3/test/c.jpg"},
	}

	report := BuildReport(index, migrated)

	if len(report.Consistent) != 1 || report.Consistent[0].LocalPath != "a.jpg" {
		t.Fatalf("consistent = %+v", report.Consistent)
	}
	if len(report.OrphanRecords) != 1 || report.OrphanRecords[0].LocalPath != "c.jpg" {
		t.Fatalf("orphan records = %+v", report.OrphanRecords)
	}
	if len(report.OrphanObjects) != 1 || report.OrphanObjects[0].Key != "media/s3/test/b.jpg" {
		t.Fatalf("orphan objects = %+v", report.OrphanObjects)
	}
	if report.Generation != index.Generation {
		t.Fatalf("generation = %q, want %q", report.Generation, index.Generation)
	}
}

func TestBuildReportFullyConsistent(t *testing.T) {
	index := indexOf("a.jpg")
	migrated := []domain.MigratedRecord{{AssetID: 1, LocalPath: "a.jpg"}}

	report := BuildReport(index, migrated)
	if len(report.OrphanRecords) != 0 || len(report.OrphanObjects) != 0 {
		t.Fatalf("report = %+v, want no orphans", report)
	}
}

func TestWorkflowReportUsesCachedIndex(t *testing.T) {
	ctx := context.Background()
	assets := newFakeAssets(
		&domain.Asset{ID: 1, LocalPath: "a.jpg", Migrated: true, RemoteKey: "media/s3/test/a.jpg"},
	)
	scanner := &fakeScanner{index: indexOf("a.jpg")}
	cache := &memIndexCache{}
	wf := NewWorkflow(assets, &fakeHistory{}, scanner, cache, fakeURLs{})

	report, err := wf.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Consistent) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if scanner.scans != 1 {
		t.Fatalf("scans = %d, want 1", scanner.scans)
	}

	// A second report reuses the cached index.
	if _, err := wf.Report(ctx); err != nil {
		t.Fatalf("second report: %v", err)
	}
	if scanner.scans != 1 {
		t.Fatalf("scans = %d, cached index should be reused", scanner.scans)
	}
}
