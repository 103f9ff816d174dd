package offload

import (
	"context"
	"errors"
	"fmt"

	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/storage"
	"github.com/rs/zerolog/log"
)

// UpdateCacheControl rewrites the Cache-Control header on a migrated asset's
// remote objects. The original must succeed; derivatives are best-effort like
// the upload path. The CDN entry for the asset is invalidated so the new
// header takes effect.
func (w *Workflow) UpdateCacheControl(ctx context.Context, id int64, cacheControl string) error {
	asset, err := w.assets.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	if asset == nil {
		return errors.New("asset not found")
	}
	if !asset.Migrated || asset.RemoteKey == "" {
		return errors.New("asset is not migrated")
	}

	if err := w.store.UpdateMetadata(ctx, asset.RemoteKey, cacheControl); err != nil {
		return fmt.Errorf("update metadata for %s: %w", asset.RemoteKey, err)
	}

	derivatives, err := w.assets.GetDerivatives(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("asset_id", id).Msg("could not list derivatives")
	}
	updated := []string{asset.LocalPath}
	for name, rel := range derivatives {
		key := w.keys.RemoteKey(rel)
		if err := w.store.UpdateMetadata(ctx, key, cacheControl); err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			log.Warn().Err(err).Int64("asset_id", id).Str("derivative", name).Msg("derivative metadata update failed")
			continue
		}
		updated = append(updated, rel)
	}

	entry := &domain.HistoryEntry{
		Action:    "metadata_updated",
		AssetID:   id,
		LocalPath: asset.LocalPath,
		RemoteKey: asset.RemoteKey,
		Source:    domain.SourceMigration,
		Details:   "cache-control: " + cacheControl,
	}
	if err := w.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Int64("asset_id", id).Msg("could not record metadata history")
	}

	if w.cdn != nil {
		w.cdn.Queue(updated...)
	}
	return nil
}
