package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/offloadops/offload/internal/domain"
)

// HistoryRepository stores the durable audit trail of offload actions.
type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts a history entry, assigning an id when absent.
func (r *HistoryRepository) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO offload_history (
			id, action, asset_id, local_path, remote_key, size, source, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Action, entry.AssetID, entry.LocalPath,
		entry.RemoteKey, entry.Size, string(entry.Source), entry.Details)
	if err != nil {
		return fmt.Errorf("record history for asset %d: %w", entry.AssetID, err)
	}
	return nil
}

// ListRecent returns the newest entries, newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []domain.HistoryEntry
	query := `
		SELECT id, action, asset_id, local_path, remote_key, size, source,
		       COALESCE(details, '') AS details, created_at
		FROM offload_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// TotalBytes sums the recorded sizes for the given actions.
func (r *HistoryRepository) TotalBytes(ctx context.Context, actions []string) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size), 0) FROM offload_history WHERE action = ANY($1)`
	if err := r.db.GetContext(ctx, &total, query, pq.Array(actions)); err != nil {
		return 0, fmt.Errorf("sum history bytes: %w", err)
	}
	return total, nil
}
