package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/offloadops/offload/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is in progress.
	// Progress is never silently discarded; callers must Stop first.
	ErrAlreadyRunning = errors.New("processor already running")
	// ErrNotRunning is returned by Pause when there is nothing to pause.
	ErrNotRunning = errors.New("processor is not running")
	// ErrNotPaused is returned by Resume outside the paused state.
	ErrNotPaused = errors.New("processor is not paused")
)

// ItemResult is the outcome of processing a single item. Err marks the item
// failed; Skipped marks it intentionally untouched. Workflow implementations
// must catch their own failures and report them here; nothing an item does
// may abort the batch.
type ItemResult struct {
	Skipped bool
	Err     error
}

// Workflow supplies the item semantics the engine drives: counting, keyset
// fetching and per-item processing.
type Workflow interface {
	Name() string

	// CountItems returns the point-in-time total used for progress
	// reporting. It may go stale while the run proceeds; completion is
	// decided by an empty fetch, never by this number.
	CountItems(ctx context.Context, opts domain.RunOptions) (int, error)

	// FetchItems returns up to limit item ids with id > afterID in
	// ascending order. An error here aborts the batch with the cursor
	// unchanged.
	FetchItems(ctx context.Context, limit int, afterID int64, opts domain.RunOptions) ([]int64, error)

	// ProcessItem handles one item. Failures are reported in the result,
	// never panicked or returned as engine errors.
	ProcessItem(ctx context.Context, id int64, opts domain.RunOptions) ItemResult
}

// StateStore persists processor state between batch invocations.
type StateStore interface {
	Load(ctx context.Context, workflow string) (*domain.ProcessorState, error)
	Save(ctx context.Context, state *domain.ProcessorState) error
	Clear(ctx context.Context, workflow string) error
}

// Engine is the generic resumable batch processor. It has no internal
// scheduling loop: an external driver invokes ProcessBatch once per tick and
// must serialize calls for the same workflow.
type Engine struct {
	workflow Workflow
	store    StateStore
}

func New(workflow Workflow, store StateStore) *Engine {
	return &Engine{workflow: workflow, store: store}
}

// Name returns the driven workflow's name.
func (e *Engine) Name() string { return e.workflow.Name() }

// Start begins a new run: counts items, resets all counters and persists the
// state as running. Rejected with ErrAlreadyRunning while a run is active.
func (e *Engine) Start(ctx context.Context, opts domain.RunOptions) (*domain.ProcessorState, error) {
	current, err := e.store.Load(ctx, e.workflow.Name())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if current != nil && current.Status.Active() {
		return nil, ErrAlreadyRunning
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = domain.DefaultBatchSize
	}

	total, err := e.workflow.CountItems(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	now := time.Now().Unix()
	state := &domain.ProcessorState{
		Workflow:   e.workflow.Name(),
		Status:     domain.StatusRunning,
		TotalItems: total,
		StartedAt:  now,
		UpdatedAt:  now,
		Options:    opts,
	}
	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	log.Info().
		Str("workflow", e.workflow.Name()).
		Int("total_items", total).
		Int("batch_size", opts.BatchSize).
		Msg("batch run started")

	return state, nil
}

// ProcessBatch runs one bounded unit of work. It is a no-op returning
// Success=false when the processor is not running. An empty fetch completes
// the run. The cursor advances to the last fetched id regardless of per-item
// outcomes, so one bad item can never stall the run.
func (e *Engine) ProcessBatch(ctx context.Context) (domain.BatchResult, error) {
	state, err := e.store.Load(ctx, e.workflow.Name())
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("load state: %w", err)
	}
	if state == nil || state.Status != domain.StatusRunning {
		return domain.BatchResult{Message: "processor is not running"}, nil
	}

	ids, err := e.workflow.FetchItems(ctx, state.Options.BatchSize, state.LastItemID, state.Options)
	if err != nil {
		// Engine-level failure: nothing was persisted, the cursor is
		// unchanged and the batch is safe to retry.
		return domain.BatchResult{}, fmt.Errorf("fetch items after %d: %w", state.LastItemID, err)
	}

	state.CurrentBatch++

	if len(ids) == 0 {
		state.Status = domain.StatusCompleted
		state.UpdatedAt = time.Now().Unix()
		if err := e.store.Save(ctx, state); err != nil {
			return domain.BatchResult{}, fmt.Errorf("persist completed state: %w", err)
		}
		log.Info().
			Str("workflow", e.workflow.Name()).
			Int("processed", state.Processed).
			Int("failed", state.Failed).
			Int("skipped", state.Skipped).
			Msg("batch run completed")
		return domain.BatchResult{Success: true, Completed: true, Message: "no items remaining"}, nil
	}

	result := domain.BatchResult{Success: true}
	for _, id := range ids {
		itemResult := e.workflow.ProcessItem(ctx, id, state.Options)
		switch {
		case itemResult.Err != nil:
			state.Failed++
			state.RecordError(id, itemResult.Err.Error())
			result.Failed++
			log.Warn().
				Str("workflow", e.workflow.Name()).
				Int64("item_id", id).
				Err(itemResult.Err).
				Msg("item failed")
		case itemResult.Skipped:
			state.Skipped++
			result.Skipped++
		default:
			state.Processed++
			result.Processed++
		}
	}

	// ids are ascending; the last one is the new high-water mark.
	state.LastItemID = ids[len(ids)-1]
	state.UpdatedAt = time.Now().Unix()
	if err := e.store.Save(ctx, state); err != nil {
		return domain.BatchResult{}, fmt.Errorf("persist state: %w", err)
	}

	log.Debug().
		Str("workflow", e.workflow.Name()).
		Int("batch", state.CurrentBatch).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int64("last_item_id", state.LastItemID).
		Msg("batch processed")

	return result, nil
}

// Pause transitions running -> paused; a no-op error outside running.
func (e *Engine) Pause(ctx context.Context) error {
	state, err := e.store.Load(ctx, e.workflow.Name())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state == nil || state.Status != domain.StatusRunning {
		return ErrNotRunning
	}
	state.Status = domain.StatusPaused
	state.UpdatedAt = time.Now().Unix()
	return e.store.Save(ctx, state)
}

// Resume transitions paused -> running; a no-op error outside paused.
func (e *Engine) Resume(ctx context.Context) error {
	state, err := e.store.Load(ctx, e.workflow.Name())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state == nil || state.Status != domain.StatusPaused {
		return ErrNotPaused
	}
	state.Status = domain.StatusRunning
	state.UpdatedAt = time.Now().Unix()
	return e.store.Save(ctx, state)
}

// Stop unconditionally clears the persisted state. The in-flight batch, if
// any, finishes on its own; subsequent batches observe cleared state and
// no-op.
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.store.Clear(ctx, e.workflow.Name()); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	log.Info().Str("workflow", e.workflow.Name()).Msg("batch run stopped")
	return nil
}

// State returns the current processor state. It never fails: load errors and
// missing runs both fall back to the default idle state so status surfaces
// stay resilient.
func (e *Engine) State(ctx context.Context) *domain.ProcessorState {
	state, err := e.store.Load(ctx, e.workflow.Name())
	if err != nil {
		log.Warn().Err(err).Str("workflow", e.workflow.Name()).Msg("state load failed, reporting idle")
		return domain.EmptyState(e.workflow.Name())
	}
	if state == nil {
		return domain.EmptyState(e.workflow.Name())
	}
	return state
}
