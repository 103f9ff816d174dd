package retrier

import (
	"context"
	"fmt"
	"time"

	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/storage"
	"github.com/rs/zerolog/log"
)

// Store is the durable failure queue the retrier drains.
type Store interface {
	Upsert(ctx context.Context, op domain.OperationKind, itemID int64, reference, errorCode, errorMessage string) (*domain.FailedOperation, error)
	List(ctx context.Context) ([]domain.FailedOperation, error)
	Delete(ctx context.Context, op domain.OperationKind, itemID int64) error
}

// Notifier is told about failures that will never be retried again, either
// because the error class cannot succeed on retry or the attempt ceiling
// was reached.
type Notifier interface {
	NotifyTerminalFailure(ctx context.Context, failed *domain.FailedOperation, reason string)
}

// Handler re-executes the remote operation a queue entry stands for.
type Handler func(ctx context.Context, failed domain.FailedOperation) error

// RunSummary reports one RetryAll pass.
type RunSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Purged    int `json:"purged"`
}

// Queue owns admission to and draining of the failure queue. Admission
// filters non-retryable error classes up front so the queue only ever holds
// work that can plausibly succeed.
type Queue struct {
	store    Store
	notifier Notifier
	handlers map[domain.OperationKind]Handler

	baseDelay time.Duration
	sleep     func(time.Duration)
}

func NewQueue(store Store, notifier Notifier, baseDelay time.Duration) *Queue {
	return &Queue{
		store:     store,
		notifier:  notifier,
		handlers:  make(map[domain.OperationKind]Handler),
		baseDelay: baseDelay,
		sleep:     time.Sleep,
	}
}

// Register installs the handler that re-executes one operation kind.
func (q *Queue) Register(op domain.OperationKind, h Handler) {
	q.handlers[op] = h
}

// RecordFailed admits a failure to the queue, or reports it terminal when
// its error class cannot succeed on a retry.
func (q *Queue) RecordFailed(ctx context.Context, op domain.OperationKind, itemID int64, reference, errorCode, errorMessage string) error {
	if !storage.RetryableCode(storage.ErrorCode(errorCode)) {
		failed := &domain.FailedOperation{
			Operation:    op,
			ItemID:       itemID,
			Reference:    reference,
			ErrorCode:    errorCode,
			ErrorMessage: errorMessage,
		}
		q.notifier.NotifyTerminalFailure(ctx, failed, "error is not retryable")
		return nil
	}

	failed, err := q.store.Upsert(ctx, op, itemID, reference, errorCode, errorMessage)
	if err != nil {
		return err
	}
	log.Warn().
		Str("operation", string(op)).
		Int64("item_id", itemID).
		Str("error_code", errorCode).
		Int("retry_count", failed.RetryCount).
		Msg("queued failed operation for retry")
	return nil
}

// RetryAll drains the queue once, oldest entries first. Entries at the
// attempt ceiling are purged with a single terminal notification; the rest
// are re-executed after their backoff. A retry that fails again goes back
// through Upsert, so its count advances.
func (q *Queue) RetryAll(ctx context.Context) (*RunSummary, error) {
	entries, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failure queue: %w", err)
	}

	summary := &RunSummary{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		if entry.RetryCount >= MaxRetries {
			q.notifier.NotifyTerminalFailure(ctx, &entry, fmt.Sprintf("gave up after %d attempts", entry.RetryCount))
			if err := q.store.Delete(ctx, entry.Operation, entry.ItemID); err != nil {
				log.Error().Err(err).
					Str("operation", string(entry.Operation)).
					Int64("item_id", entry.ItemID).
					Msg("could not purge exhausted failure")
			}
			summary.Purged++
			continue
		}

		handler, ok := q.handlers[entry.Operation]
		if !ok {
			log.Error().
				Str("operation", string(entry.Operation)).
				Int64("item_id", entry.ItemID).
				Msg("no retry handler registered")
			continue
		}

		q.sleep(Delay(q.baseDelay, entry.RetryCount))
		summary.Attempted++

		if err := handler(ctx, entry); err != nil {
			summary.Failed++
			code := storage.CodeOf(err)
			if !storage.RetryableCode(code) {
				// The failure class changed to something a retry cannot
				// fix; report it terminal and drop the entry.
				entry.ErrorCode = string(code)
				entry.ErrorMessage = err.Error()
				q.notifier.NotifyTerminalFailure(ctx, &entry, "error is not retryable")
				if derr := q.store.Delete(ctx, entry.Operation, entry.ItemID); derr != nil {
					log.Error().Err(derr).
						Str("operation", string(entry.Operation)).
						Int64("item_id", entry.ItemID).
						Msg("could not drop terminal failure")
				}
				summary.Purged++
				continue
			}
			if _, uerr := q.store.Upsert(ctx, entry.Operation, entry.ItemID, entry.Reference, string(code), err.Error()); uerr != nil {
				log.Error().Err(uerr).
					Str("operation", string(entry.Operation)).
					Int64("item_id", entry.ItemID).
					Msg("could not re-record failed retry")
			}
			log.Warn().Err(err).
				Str("operation", string(entry.Operation)).
				Int64("item_id", entry.ItemID).
				Int("retry_count", entry.RetryCount+1).
				Msg("retry failed")
			continue
		}

		if err := q.store.Delete(ctx, entry.Operation, entry.ItemID); err != nil {
			log.Error().Err(err).
				Str("operation", string(entry.Operation)).
				Int64("item_id", entry.ItemID).
				Msg("could not remove succeeded entry from queue")
		}
		summary.Succeeded++
		log.Info().
			Str("operation", string(entry.Operation)).
			Int64("item_id", entry.ItemID).
			Msg("retry succeeded")
	}

	return summary, nil
}
