package stats

import (
	"context"
	"fmt"

	"github.com/offloadops/offload/internal/domain"
)

// StateReader reports a workflow's current processor state; implementations
// fall back to idle rather than failing.
type StateReader interface {
	State(ctx context.Context) *domain.ProcessorState
}

// AssetCounter exposes the catalog counts the snapshot reports.
type AssetCounter interface {
	CountAll(ctx context.Context) (int, error)
	CountPending(ctx context.Context) (int, error)
	CountMigrated(ctx context.Context) (int, error)
}

// HistoryReader exposes the audit trail rollups.
type HistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	TotalBytes(ctx context.Context, actions []string) (int64, error)
}

// FailureCounter reports the failure queue depth.
type FailureCounter interface {
	Count(ctx context.Context) (int, error)
}

// Snapshot is the read-only operational overview.
type Snapshot struct {
	TotalAssets    int                             `json:"total_assets"`
	PendingAssets  int                             `json:"pending_assets"`
	MigratedAssets int                             `json:"migrated_assets"`
	OffloadedBytes int64                           `json:"offloaded_bytes"`
	QueuedFailures int                             `json:"queued_failures"`
	Workflows      map[string]*domain.ProcessorState `json:"workflows"`
	RecentActivity []domain.HistoryEntry           `json:"recent_activity"`
}

// Aggregator assembles a Snapshot from the read sides of the other
// components. It mutates nothing.
type Aggregator struct {
	assets   AssetCounter
	history  HistoryReader
	failures FailureCounter
	states   map[string]StateReader
}

func NewAggregator(assets AssetCounter, history HistoryReader, failures FailureCounter) *Aggregator {
	return &Aggregator{
		assets:   assets,
		history:  history,
		failures: failures,
		states:   make(map[string]StateReader),
	}
}

// Track adds a workflow whose state the snapshot includes.
func (a *Aggregator) Track(workflow string, reader StateReader) {
	a.states[workflow] = reader
}

// Snapshot gathers the overview. Per-workflow state reads degrade to idle
// rather than failing the whole snapshot.
func (a *Aggregator) Snapshot(ctx context.Context, recentLimit int) (*Snapshot, error) {
	snap := &Snapshot{Workflows: make(map[string]*domain.ProcessorState, len(a.states))}

	var err error
	if snap.TotalAssets, err = a.assets.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}
	if snap.PendingAssets, err = a.assets.CountPending(ctx); err != nil {
		return nil, fmt.Errorf("count pending assets: %w", err)
	}
	if snap.MigratedAssets, err = a.assets.CountMigrated(ctx); err != nil {
		return nil, fmt.Errorf("count migrated assets: %w", err)
	}
	if snap.OffloadedBytes, err = a.history.TotalBytes(ctx, []string{"migrated"}); err != nil {
		return nil, fmt.Errorf("sum offloaded bytes: %w", err)
	}
	if snap.QueuedFailures, err = a.failures.Count(ctx); err != nil {
		return nil, fmt.Errorf("count queued failures: %w", err)
	}
	if snap.RecentActivity, err = a.history.ListRecent(ctx, recentLimit); err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}

	for name, reader := range a.states {
		state := reader.State(ctx)
		if state == nil {
			state = domain.EmptyState(name)
		}
		snap.Workflows[name] = state
	}

	return snap, nil
}
