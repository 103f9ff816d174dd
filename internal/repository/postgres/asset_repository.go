package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/offloadops/offload/internal/domain"
)

// AssetRepository is the source-of-truth catalog of local media assets and
// their offload metadata.
type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// CountPending counts assets that have not been offloaded yet.
func (r *AssetRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM assets WHERE migrated = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("count pending assets: %w", err)
	}
	return count, nil
}

// GetPending returns up to limit unmigrated asset ids with id > afterID in
// ascending order (keyset pagination).
func (r *AssetRepository) GetPending(ctx context.Context, limit int, afterID int64) ([]int64, error) {
	var ids []int64
	query := `
		SELECT id FROM assets
		WHERE migrated = FALSE AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("get pending assets: %w", err)
	}
	return ids, nil
}

// CountAll counts every tracked asset.
func (r *AssetRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM assets`); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}

// ListIDs returns up to limit asset ids with id > afterID, ascending,
// regardless of migration status.
func (r *AssetRepository) ListIDs(ctx context.Context, limit int, afterID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM assets WHERE id > $1 ORDER BY id ASC LIMIT $2`
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list asset ids: %w", err)
	}
	return ids, nil
}

// Get returns a single asset.
func (r *AssetRepository) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	var (
		asset     domain.Asset
		remoteKey sql.NullString
		url       sql.NullString
	)
	query := `
		SELECT id, local_path, remote_key, url, migrated, size, created_at, updated_at
		FROM assets WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	err := row.Scan(&asset.ID, &asset.LocalPath, &remoteKey, &url,
		&asset.Migrated, &asset.Size, &asset.CreatedAt, &asset.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %d: %w", id, err)
	}
	asset.RemoteKey = remoteKey.String
	asset.URL = url.String
	return &asset, nil
}

// GetDerivatives returns the asset's derivative name -> relative path map.
func (r *AssetRepository) GetDerivatives(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, local_path FROM asset_derivatives WHERE asset_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("get derivatives for asset %d: %w", id, err)
	}
	defer rows.Close()

	derivatives := make(map[string]string)
	for rows.Next() {
		var name, path string
		if err := rows.Scan(&name, &path); err != nil {
			return nil, fmt.Errorf("scan derivative: %w", err)
		}
		derivatives[name] = path
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derivatives: %w", err)
	}
	return derivatives, nil
}

// MarkMigrated records a confirmed upload: remote key, public URL and the
// migrated flag in one statement.
func (r *AssetRepository) MarkMigrated(ctx context.Context, id int64, remoteKey, url string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assets
		SET migrated = TRUE, remote_key = $1, url = $2, updated_at = NOW()
		WHERE id = $3
	`, remoteKey, url, id)
	if err != nil {
		return fmt.Errorf("mark asset %d migrated: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark asset %d migrated: no such asset", id)
	}
	return nil
}

// ClearMigrationMetadata reverts an asset to the unmigrated state. Queued
// delete retries for the asset reference a remote object that no longer
// exists, so they are dropped in the same transaction.
func (r *AssetRepository) ClearMigrationMetadata(ctx context.Context, id int64) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE assets
			SET migrated = FALSE, remote_key = NULL, url = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM failed_operations WHERE operation = $1 AND item_id = $2`,
			string(domain.OpDelete), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear migration metadata for asset %d: %w", id, err)
	}
	return nil
}

// ListMigrated returns the slim projection of every asset marked migrated,
// used by the reconciliation diff.
func (r *AssetRepository) ListMigrated(ctx context.Context) ([]domain.MigratedRecord, error) {
	var records []domain.MigratedRecord
	query := `
		SELECT id, local_path, COALESCE(remote_key, '') AS remote_key
		FROM assets
		WHERE migrated = TRUE
		ORDER BY local_path
	`
	if err := sqlx.SelectContext(ctx, r.db, &records, query); err != nil {
		return nil, fmt.Errorf("list migrated assets: %w", err)
	}
	return records, nil
}

// CountMigrated counts assets marked migrated.
func (r *AssetRepository) CountMigrated(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM assets WHERE migrated = TRUE`); err != nil {
		return 0, fmt.Errorf("count migrated assets: %w", err)
	}
	return count, nil
}
