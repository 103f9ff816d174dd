package domain

import "time"

// Status is the lifecycle state of a batch processor run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active reports whether a run is in progress (running or paused).
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

// MaxTrackedErrors bounds the per-run error list kept in ProcessorState.
const MaxTrackedErrors = 50

// DefaultBatchSize is the number of items fetched per ProcessBatch call
// when the caller does not override it.
const DefaultBatchSize = 25

// ReconcileMode selects how the reconciliation workflow treats assets that
// are absent from the remote index.
type ReconcileMode string

const (
	// ModeReport leaves repository records untouched and only reports.
	ModeReport ReconcileMode = "report"
	// ModeMarkFound marks assets found on the remote as migrated and
	// actively clears migration metadata from assets that are not found.
	// Destructive: only safe against a fresh scan.
	ModeMarkFound ReconcileMode = "mark_found"
)

// RunOptions carries the workflow parameters captured at Start.
type RunOptions struct {
	BatchSize   int           `json:"batch_size"`
	RemoveLocal bool          `json:"remove_local,omitempty"`
	Mode        ReconcileMode `json:"mode,omitempty"`
}

// ItemError records a single item failure in the bounded error list.
type ItemError struct {
	ItemID     int64     `json:"item_id"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProcessorState is the checkpointed state of one workflow run. It is
// persisted after every mutation so a crash loses at most the in-flight
// batch. Counters are monotonic within a run; TotalItems is a point-in-time
// count and may be stale, so processed+failed+skipped is never compared
// against it to decide completion.
type ProcessorState struct {
	Workflow     string      `json:"workflow"`
	Status       Status      `json:"status"`
	TotalItems   int         `json:"total_items"`
	Processed    int         `json:"processed"`
	Failed       int         `json:"failed"`
	Skipped      int         `json:"skipped"`
	CurrentBatch int         `json:"current_batch"`
	LastItemID   int64       `json:"last_item_id"`
	StartedAt    int64       `json:"started_at"`
	UpdatedAt    int64       `json:"updated_at"`
	Errors       []ItemError `json:"errors,omitempty"`
	Options      RunOptions  `json:"options"`
}

// EmptyState returns the default idle state for a workflow. State queries
// fall back to this so dashboards never see an error for a missing run.
func EmptyState(workflow string) *ProcessorState {
	return &ProcessorState{
		Workflow: workflow,
		Status:   StatusIdle,
		Options:  RunOptions{BatchSize: DefaultBatchSize},
	}
}

// RecordError appends an item failure, keeping only the most recent
// MaxTrackedErrors entries.
func (s *ProcessorState) RecordError(itemID int64, msg string) {
	s.Errors = append(s.Errors, ItemError{
		ItemID:     itemID,
		Error:      msg,
		OccurredAt: time.Now().UTC(),
	})
	if len(s.Errors) > MaxTrackedErrors {
		s.Errors = s.Errors[len(s.Errors)-MaxTrackedErrors:]
	}
}

// BatchResult summarizes one ProcessBatch invocation.
type BatchResult struct {
	Success   bool   `json:"success"`
	Completed bool   `json:"completed"`
	Message   string `json:"message,omitempty"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}
