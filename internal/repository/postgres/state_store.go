package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/offloadops/offload/internal/domain"
)

// StateStore is the durable copy of processor state, one row per workflow.
// The read path normally goes through cache.CachedStateStore; this store is
// the single source of truth.
type StateStore struct {
	db *DB
}

func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Load returns the persisted state for a workflow, nil when no run exists.
func (s *StateStore) Load(ctx context.Context, workflow string) (*domain.ProcessorState, error) {
	query := `
		SELECT workflow, status, total_items, processed, failed, skipped,
		       current_batch, last_item_id, started_at, updated_at, errors, options
		FROM processor_state
		WHERE workflow = $1
	`

	var (
		state         domain.ProcessorState
		status        string
		errorsPayload []byte
		optsPayload   []byte
	)
	row := s.db.QueryRowContext(ctx, query, workflow)
	err := row.Scan(&state.Workflow, &status, &state.TotalItems, &state.Processed,
		&state.Failed, &state.Skipped, &state.CurrentBatch, &state.LastItemID,
		&state.StartedAt, &state.UpdatedAt, &errorsPayload, &optsPayload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load processor state for %s: %w", workflow, err)
	}

	state.Status = domain.Status(status)
	if len(errorsPayload) > 0 {
		if err := json.Unmarshal(errorsPayload, &state.Errors); err != nil {
			return nil, fmt.Errorf("decode state errors for %s: %w", workflow, err)
		}
	}
	if len(optsPayload) > 0 {
		if err := json.Unmarshal(optsPayload, &state.Options); err != nil {
			return nil, fmt.Errorf("decode state options for %s: %w", workflow, err)
		}
	}
	return &state, nil
}

// Save upserts the state row for the workflow.
func (s *StateStore) Save(ctx context.Context, state *domain.ProcessorState) error {
	errorsPayload, err := json.Marshal(state.Errors)
	if err != nil {
		return fmt.Errorf("encode state errors: %w", err)
	}
	optsPayload, err := json.Marshal(state.Options)
	if err != nil {
		return fmt.Errorf("encode state options: %w", err)
	}

	query := `
		INSERT INTO processor_state (
			workflow, status, total_items, processed, failed, skipped,
			current_batch, last_item_id, started_at, updated_at, errors, options
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (workflow)
		DO UPDATE SET
			status = EXCLUDED.status,
			total_items = EXCLUDED.total_items,
			processed = EXCLUDED.processed,
			failed = EXCLUDED.failed,
			skipped = EXCLUDED.skipped,
			current_batch = EXCLUDED.current_batch,
			last_item_id = EXCLUDED.last_item_id,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at,
			errors = EXCLUDED.errors,
			options = EXCLUDED.options
	`
	_, err = s.db.ExecContext(ctx, query,
		state.Workflow, string(state.Status), state.TotalItems, state.Processed,
		state.Failed, state.Skipped, state.CurrentBatch, state.LastItemID,
		state.StartedAt, state.UpdatedAt, errorsPayload, optsPayload,
	)
	if err != nil {
		return fmt.Errorf("save processor state for %s: %w", state.Workflow, err)
	}
	return nil
}

// Clear removes the state row; called on stop and never an error when the
// row is already gone.
func (s *StateStore) Clear(ctx context.Context, workflow string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM processor_state WHERE workflow = $1`, workflow); err != nil {
		return fmt.Errorf("clear processor state for %s: %w", workflow, err)
	}
	return nil
}
