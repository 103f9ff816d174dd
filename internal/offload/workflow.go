package offload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
	"github.com/offloadops/offload/internal/storage"
	"github.com/rs/zerolog/log"
)

// WorkflowName identifies the migration workflow in persisted state.
const WorkflowName = "migration"

// AssetRepository is the catalog surface the migration workflow consumes.
type AssetRepository interface {
	CountPending(ctx context.Context) (int, error)
	GetPending(ctx context.Context, limit int, afterID int64) ([]int64, error)
	Get(ctx context.Context, id int64) (*domain.Asset, error)
	GetDerivatives(ctx context.Context, id int64) (map[string]string, error)
	MarkMigrated(ctx context.Context, id int64, remoteKey, url string) error
}

// HistoryRecorder persists audit entries for completed offloads.
type HistoryRecorder interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
}

// FailureRecorder routes upload failures into the retry queue.
type FailureRecorder interface {
	RecordFailed(ctx context.Context, op domain.OperationKind, itemID int64, reference, errorCode, errorMessage string) error
}

// InvalidationQueuer accepts CDN paths to purge after a successful offload.
type InvalidationQueuer interface {
	Queue(paths ...string)
}

// Workflow migrates pending assets to object storage. It satisfies
// engine.Workflow; the engine drives it one batch at a time.
type Workflow struct {
	assets   AssetRepository
	history  HistoryRecorder
	failures FailureRecorder
	store    storage.ObjectStorage
	cdn      InvalidationQueuer
	keys     KeyBuilder
	// baseDir is the local upload root asset paths are relative to.
	baseDir string
}

func NewWorkflow(assets AssetRepository, history HistoryRecorder, failures FailureRecorder, store storage.ObjectStorage, cdn InvalidationQueuer, keys KeyBuilder, baseDir string) *Workflow {
	return &Workflow{
		assets:   assets,
		history:  history,
		failures: failures,
		store:    store,
		cdn:      cdn,
		keys:     keys,
		baseDir:  baseDir,
	}
}

func (w *Workflow) Name() string { return WorkflowName }

func (w *Workflow) CountItems(ctx context.Context, opts domain.RunOptions) (int, error) {
	return w.assets.CountPending(ctx)
}

func (w *Workflow) FetchItems(ctx context.Context, limit int, afterID int64, opts domain.RunOptions) ([]int64, error) {
	return w.assets.GetPending(ctx, limit, afterID)
}

// ProcessItem offloads a single asset: upload the original, flip the
// repository record, then best-effort the derivatives. The original is the
// contract: a derivative failure never fails the item, and the asset is
// never marked migrated without a confirmed upload.
func (w *Workflow) ProcessItem(ctx context.Context, id int64, opts domain.RunOptions) engine.ItemResult {
	return w.processItem(ctx, id, opts, true)
}

// processItem carries the recordFailure switch so retry dispatch can re-run
// an upload without double-counting it in the failure queue (the retrier
// re-records on its own).
func (w *Workflow) processItem(ctx context.Context, id int64, opts domain.RunOptions, recordFailure bool) engine.ItemResult {
	asset, err := w.assets.Get(ctx, id)
	if err != nil {
		return engine.ItemResult{Err: fmt.Errorf("load asset: %w", err)}
	}
	if asset == nil {
		return engine.ItemResult{Err: errors.New("asset not found")}
	}
	if asset.Migrated {
		// Already offloaded; nothing to do.
		return engine.ItemResult{Skipped: true}
	}

	// Fail fast before touching remote storage.
	if asset.LocalPath == "" {
		return engine.ItemResult{Err: errors.New("no file path recorded")}
	}
	localPath := filepath.Join(w.baseDir, filepath.FromSlash(asset.LocalPath))
	info, err := os.Stat(localPath)
	if err != nil {
		return engine.ItemResult{Err: fmt.Errorf("local file missing: %s", asset.LocalPath)}
	}

	remoteKey := w.keys.RemoteKey(asset.LocalPath)
	result, err := w.store.Put(ctx, localPath, remoteKey, contentTypeFor(asset.LocalPath), map[string]string{
		"asset-id": strconv.FormatInt(id, 10),
	})
	if err != nil {
		if recordFailure {
			if recErr := w.failures.RecordFailed(ctx, domain.OpUpload, id, asset.LocalPath, string(storage.CodeOf(err)), err.Error()); recErr != nil {
				log.Error().Err(recErr).Int64("asset_id", id).Msg("could not queue upload failure for retry")
			}
		}
		return engine.ItemResult{Err: fmt.Errorf("upload original: %w", err)}
	}

	if err := w.assets.MarkMigrated(ctx, id, result.Key, result.URL); err != nil {
		return engine.ItemResult{Err: fmt.Errorf("mark migrated: %w", err)}
	}

	uploaded, total := w.uploadDerivatives(ctx, id, opts)

	if opts.RemoveLocal {
		w.removeLocal(ctx, id, asset.LocalPath, uploaded)
	}

	entry := &domain.HistoryEntry{
		Action:    "migrated",
		AssetID:   id,
		LocalPath: asset.LocalPath,
		RemoteKey: result.Key,
		Size:      info.Size(),
		Source:    domain.SourceMigration,
	}
	if total > 0 {
		entry.Details = fmt.Sprintf("derivatives uploaded %d/%d", len(uploaded), total)
	}
	if err := w.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Int64("asset_id", id).Msg("could not record migration history")
	}

	if w.cdn != nil {
		paths := append([]string{asset.LocalPath}, uploaded...)
		w.cdn.Queue(paths...)
	}

	return engine.ItemResult{}
}

// uploadDerivatives pushes every known derivative, logging failures instead
// of failing the item. Returns the relative paths that made it up and the
// total attempted.
func (w *Workflow) uploadDerivatives(ctx context.Context, id int64, opts domain.RunOptions) ([]string, int) {
	derivatives, err := w.assets.GetDerivatives(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("asset_id", id).Msg("could not list derivatives")
		return nil, 0
	}

	var uploaded []string
	for name, rel := range derivatives {
		localPath := filepath.Join(w.baseDir, filepath.FromSlash(rel))
		if _, err := os.Stat(localPath); err != nil {
			log.Warn().Int64("asset_id", id).Str("derivative", name).Str("path", rel).Msg("derivative file missing")
			continue
		}
		if _, err := w.store.Put(ctx, localPath, w.keys.RemoteKey(rel), contentTypeFor(rel), nil); err != nil {
			log.Warn().Err(err).Int64("asset_id", id).Str("derivative", name).Msg("derivative upload failed")
			continue
		}
		uploaded = append(uploaded, rel)
	}
	return uploaded, len(derivatives)
}

// removeLocal deletes the original and the successfully uploaded derivatives
// after their remote copies are confirmed, then prunes empty parents.
func (w *Workflow) removeLocal(ctx context.Context, id int64, original string, derivatives []string) {
	for _, rel := range append([]string{original}, derivatives...) {
		localPath := filepath.Join(w.baseDir, filepath.FromSlash(rel))
		if err := os.Remove(localPath); err != nil {
			log.Warn().Err(err).Int64("asset_id", id).Str("path", rel).Msg("could not remove local file")
			continue
		}
		pruneEmptyDirs(filepath.Dir(localPath), w.baseDir)
	}
}

// RetryUpload re-attempts a failed offload; wired into the retry queue's
// upload dispatch.
func (w *Workflow) RetryUpload(ctx context.Context, failed domain.FailedOperation) error {
	result := w.processItem(ctx, failed.ItemID, domain.RunOptions{}, false)
	return result.Err
}

// RetryDelete re-attempts a failed remote deletion by reference key.
func (w *Workflow) RetryDelete(ctx context.Context, failed domain.FailedOperation) error {
	return w.store.Delete(ctx, failed.Reference)
}

func contentTypeFor(relPath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(relPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
