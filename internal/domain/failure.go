package domain

import "time"

// OperationKind identifies the remote operation a failure belongs to, and
// drives retry dispatch.
type OperationKind string

const (
	OpUpload OperationKind = "upload"
	OpDelete OperationKind = "delete"
)

// FailedOperation is one entry in the persistent failure queue, keyed by
// (Operation, ItemID). A repeated failure of the same key increments
// RetryCount and overwrites the error, preserving the original CreatedAt.
type FailedOperation struct {
	Operation    OperationKind `json:"operation" db:"operation"`
	ItemID       int64         `json:"item_id" db:"item_id"`
	Reference    string        `json:"reference" db:"reference"`
	ErrorCode    string        `json:"error_code" db:"error_code"`
	ErrorMessage string        `json:"error_message" db:"error_message"`
	RetryCount   int           `json:"retry_count" db:"retry_count"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}
