package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/offloadops/offload/internal/domain"
)

// FailureRepository is the persistent failure queue, keyed by
// (operation, item_id).
type FailureRepository struct {
	db *DB
}

func NewFailureRepository(db *DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Upsert records a failure. A second failure of the same key increments
// retry_count and overwrites the error detail, preserving the original
// created_at. Returns the stored row.
func (r *FailureRepository) Upsert(ctx context.Context, op domain.OperationKind, itemID int64, reference, errorCode, errorMessage string) (*domain.FailedOperation, error) {
	query := `
		INSERT INTO failed_operations (
			operation, item_id, reference, error_code, error_message, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, 1, NOW())
		ON CONFLICT (operation, item_id)
		DO UPDATE SET
			reference = EXCLUDED.reference,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			retry_count = failed_operations.retry_count + 1
		RETURNING operation, item_id, reference, error_code, error_message, retry_count, created_at
	`

	var failed domain.FailedOperation
	row := r.db.QueryRowContext(ctx, query, string(op), itemID, reference, errorCode, errorMessage)
	err := row.Scan(&failed.Operation, &failed.ItemID, &failed.Reference,
		&failed.ErrorCode, &failed.ErrorMessage, &failed.RetryCount, &failed.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record failed %s for item %d: %w", op, itemID, err)
	}
	return &failed, nil
}

// List returns every queued failure, oldest first.
func (r *FailureRepository) List(ctx context.Context) ([]domain.FailedOperation, error) {
	var failures []domain.FailedOperation
	query := `
		SELECT operation, item_id, reference, error_code, error_message, retry_count, created_at
		FROM failed_operations
		ORDER BY created_at ASC
	`
	if err := sqlx.SelectContext(ctx, r.db, &failures, query); err != nil {
		return nil, fmt.Errorf("list failed operations: %w", err)
	}
	return failures, nil
}

// Delete removes one entry; not an error when the entry is already gone.
func (r *FailureRepository) Delete(ctx context.Context, op domain.OperationKind, itemID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_operations WHERE operation = $1 AND item_id = $2`, string(op), itemID)
	if err != nil {
		return fmt.Errorf("delete failed %s for item %d: %w", op, itemID, err)
	}
	return nil
}

// Count returns the queue depth.
func (r *FailureRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_operations`); err != nil {
		return 0, fmt.Errorf("count failed operations: %w", err)
	}
	return count, nil
}
