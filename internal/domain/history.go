package domain

import "time"

// HistorySource identifies which workflow produced a history entry.
type HistorySource string

const (
	SourceMigration      HistorySource = "migration"
	SourceReconciliation HistorySource = "reconciliation"
	SourceRetry          HistorySource = "retry"
)

// HistoryEntry is the durable audit record written whenever an asset's
// offload state changes.
type HistoryEntry struct {
	ID        string        `json:"id" db:"id"`
	Action    string        `json:"action" db:"action"`
	AssetID   int64         `json:"asset_id" db:"asset_id"`
	LocalPath string        `json:"local_path" db:"local_path"`
	RemoteKey string        `json:"remote_key" db:"remote_key"`
	Size      int64         `json:"size" db:"size"`
	Source    HistorySource `json:"source" db:"source"`
	Details   string        `json:"details,omitempty" db:"details"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
