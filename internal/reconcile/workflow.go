package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
	"github.com/rs/zerolog/log"
)

// WorkflowName identifies the reconciliation workflow in persisted state.
const WorkflowName = "reconciliation"

// AssetRepository is the catalog surface reconciliation consumes.
type AssetRepository interface {
	CountAll(ctx context.Context) (int, error)
	ListIDs(ctx context.Context, limit int, afterID int64) ([]int64, error)
	Get(ctx context.Context, id int64) (*domain.Asset, error)
	MarkMigrated(ctx context.Context, id int64, remoteKey, url string) error
	ClearMigrationMetadata(ctx context.Context, id int64) error
	ListMigrated(ctx context.Context) ([]domain.MigratedRecord, error)
}

// HistoryRecorder persists audit entries for reconciliation mutations.
type HistoryRecorder interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
}

// RemoteScanner produces a fresh RemoteIndex from a full listing pass.
type RemoteScanner interface {
	Scan(ctx context.Context) (*domain.RemoteIndex, error)
}

// IndexCache holds the scan result between batches of the same run.
type IndexCache interface {
	Get(ctx context.Context) (*domain.RemoteIndex, bool, error)
	Set(ctx context.Context, index *domain.RemoteIndex) error
	Invalidate(ctx context.Context) error
}

// URLResolver derives the public URL for an existing remote key.
type URLResolver interface {
	PublicURL(key string) string
}

// Workflow resolves drift between the object store's actual contents and the
// asset repository's belief about what has been migrated. The scan is
// amortized across the whole run: one listing at start, cached with a TTL,
// transparently rebuilt if a batch resumes past expiry.
type Workflow struct {
	assets  AssetRepository
	history HistoryRecorder
	scanner RemoteScanner
	cache   IndexCache
	urls    URLResolver

	// index is the working copy for the current batch, set by CountItems
	// and FetchItems. Batches for one workflow are externally serialized,
	// so no locking here.
	index *domain.RemoteIndex
}

func NewWorkflow(assets AssetRepository, history HistoryRecorder, scanner RemoteScanner, cache IndexCache, urls URLResolver) *Workflow {
	return &Workflow{
		assets:  assets,
		history: history,
		scanner: scanner,
		cache:   cache,
		urls:    urls,
	}
}

func (w *Workflow) Name() string { return WorkflowName }

// CountItems runs the scan phase: a fresh full listing, cached for the
// per-item phase. In mark_found mode the count of remote originals is the
// progress basis; otherwise the local catalog size is.
func (w *Workflow) CountItems(ctx context.Context, opts domain.RunOptions) (int, error) {
	index, err := w.scanner.Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan phase: %w", err)
	}
	if err := w.cache.Set(ctx, index); err != nil {
		log.Warn().Err(err).Msg("could not cache remote index")
	}
	w.index = index

	if opts.Mode == domain.ModeMarkFound {
		return index.Len(), nil
	}
	return w.assets.CountAll(ctx)
}

// FetchItems ensures the index is loaded (rebuilding it when the cache
// expired mid-run) before handing out the next slice of asset ids. Index
// failures surface here so the engine aborts the batch without advancing
// the cursor.
func (w *Workflow) FetchItems(ctx context.Context, limit int, afterID int64, opts domain.RunOptions) ([]int64, error) {
	if err := w.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return w.assets.ListIDs(ctx, limit, afterID)
}

// ProcessItem resolves one asset against the remote index.
func (w *Workflow) ProcessItem(ctx context.Context, id int64, opts domain.RunOptions) engine.ItemResult {
	if w.index == nil {
		return engine.ItemResult{Err: errors.New("remote index unavailable")}
	}

	asset, err := w.assets.Get(ctx, id)
	if err != nil {
		return engine.ItemResult{Err: fmt.Errorf("load asset: %w", err)}
	}
	if asset == nil {
		return engine.ItemResult{Err: errors.New("asset not found")}
	}
	if asset.LocalPath == "" {
		return engine.ItemResult{Err: errors.New("no file path recorded")}
	}

	// Report mode is read-only; drift is surfaced through Report.
	if opts.Mode != domain.ModeMarkFound {
		return engine.ItemResult{Skipped: true}
	}

	obj, found := w.index.Lookup(asset.LocalPath)
	if found {
		return w.markFound(ctx, asset, obj)
	}
	return w.clearMissing(ctx, asset)
}

// markFound converges the record with the remote object, the same success
// path migration takes. Re-running over an already-consistent asset is a
// no-op.
func (w *Workflow) markFound(ctx context.Context, asset *domain.Asset, obj domain.RemoteObject) engine.ItemResult {
	if asset.Migrated && asset.RemoteKey == obj.Key {
		return engine.ItemResult{Skipped: true}
	}

	url := w.urls.PublicURL(obj.Key)
	if err := w.assets.MarkMigrated(ctx, asset.ID, obj.Key, url); err != nil {
		return engine.ItemResult{Err: fmt.Errorf("mark migrated: %w", err)}
	}

	entry := &domain.HistoryEntry{
		Action:    "migrated",
		AssetID:   asset.ID,
		LocalPath: asset.LocalPath,
		RemoteKey: obj.Key,
		Size:      obj.Size,
		Source:    domain.SourceReconciliation,
		Details:   "found during remote scan",
	}
	if err := w.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Int64("asset_id", asset.ID).Msg("could not record reconciliation history")
	}

	return engine.ItemResult{}
}

// clearMissing treats absence from a fresh scan as ground truth and reverts
// the record so a later migration run picks the asset up again.
func (w *Workflow) clearMissing(ctx context.Context, asset *domain.Asset) engine.ItemResult {
	if !asset.Migrated {
		return engine.ItemResult{Skipped: true}
	}

	if err := w.assets.ClearMigrationMetadata(ctx, asset.ID); err != nil {
		return engine.ItemResult{Err: fmt.Errorf("clear migration metadata: %w", err)}
	}

	entry := &domain.HistoryEntry{
		Action:    "unmarked",
		AssetID:   asset.ID,
		LocalPath: asset.LocalPath,
		RemoteKey: asset.RemoteKey,
		Source:    domain.SourceReconciliation,
		Details:   "missing from remote scan",
	}
	if err := w.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Int64("asset_id", asset.ID).Msg("could not record reconciliation history")
	}

	return engine.ItemResult{}
}

// ensureIndex loads the cached index, rebuilding it when missing or expired.
// The rebuild repeats a full listing; correctness over cost.
func (w *Workflow) ensureIndex(ctx context.Context) error {
	index, ok, err := w.cache.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("remote index cache read failed")
	}
	if ok {
		w.index = index
		return nil
	}

	log.Info().Msg("remote index expired, rescanning")
	index, err = w.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("rebuild remote index: %w", err)
	}
	if err := w.cache.Set(ctx, index); err != nil {
		log.Warn().Err(err).Msg("could not cache remote index")
	}
	w.index = index
	return nil
}
