package retrier

import (
	"context"

	"github.com/offloadops/offload/internal/domain"
	"github.com/rs/zerolog/log"
)

// LogNotifier reports terminal failures through the structured log so they
// show up for operators without extra plumbing.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (LogNotifier) NotifyTerminalFailure(_ context.Context, failed *domain.FailedOperation, reason string) {
	log.Error().
		Str("operation", string(failed.Operation)).
		Int64("item_id", failed.ItemID).
		Str("reference", failed.Reference).
		Str("error_code", failed.ErrorCode).
		Str("error", failed.ErrorMessage).
		Int("retry_count", failed.RetryCount).
		Str("reason", reason).
		Msg("operation failed permanently, manual intervention required")
}

var _ Notifier = (*LogNotifier)(nil)
