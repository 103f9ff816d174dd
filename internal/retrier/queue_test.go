package retrier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/storage"
)

type memFailureStore struct {
	entries map[string]*domain.FailedOperation
}

func newMemFailureStore() *memFailureStore {
	return &memFailureStore{entries: make(map[string]*domain.FailedOperation)}
}

func storeKey(op domain.OperationKind, itemID int64) string {
	return fmt.Sprintf("%s:%d", op, itemID)
}

func (s *memFailureStore) Upsert(_ context.Context, op domain.OperationKind, itemID int64, reference, errorCode, errorMessage string) (*domain.FailedOperation, error) {
	key := storeKey(op, itemID)
	if existing, ok := s.entries[key]; ok {
		existing.RetryCount++
		existing.ErrorCode = errorCode
		existing.ErrorMessage = errorMessage
		clone := *existing
		return &clone, nil
	}
	entry := &domain.FailedOperation{
		Operation:    op,
		ItemID:       itemID,
		Reference:    reference,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		RetryCount:   1,
		CreatedAt:    time.Now(),
	}
	s.entries[key] = entry
	clone := *entry
	return &clone, nil
}

func (s *memFailureStore) List(context.Context) ([]domain.FailedOperation, error) {
	var out []domain.FailedOperation
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (s *memFailureStore) Delete(_ context.Context, op domain.OperationKind, itemID int64) error {
	delete(s.entries, storeKey(op, itemID))
	return nil
}

type memNotifier struct {
	notified []string
}

func (n *memNotifier) NotifyTerminalFailure(_ context.Context, failed *domain.FailedOperation, reason string) {
	n.notified = append(n.notified, failed.Reference+": "+reason)
}

func newTestQueue(store Store, notifier Notifier) *Queue {
	q := NewQueue(store, notifier, time.Second)
	q.sleep = func(time.Duration) {}
	return q
}

func TestRecordFailedFiltersNonRetryable(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	notifier := &memNotifier{}
	q := newTestQueue(store, notifier)

	err := q.RecordFailed(ctx, domain.OpUpload, 1, "a.jpg", string(storage.CodeInvalidCredentials), "bad key")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatalf("non-retryable failure must not be queued: %v", store.entries)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("notified = %v, want immediate terminal report", notifier.notified)
	}

	if err := q.RecordFailed(ctx, domain.OpUpload, 2, "b.jpg", string(storage.CodeTimeout), "timed out"); err != nil {
		t.Fatalf("record retryable: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("retryable failure must be queued: %v", store.entries)
	}
}

func TestRecordFailedIncrementsOnRepeat(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	q := newTestQueue(store, &memNotifier{})

	for i := 0; i < 3; i++ {
		if err := q.RecordFailed(ctx, domain.OpUpload, 7, "x.jpg", string(storage.CodeServerError), "boom"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entries, _ := store.List(ctx)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want a single keyed row", len(entries))
	}
	if entries[0].RetryCount != 3 {
		t.Fatalf("retry count = %d, want 3", entries[0].RetryCount)
	}
}

func TestRetryAllSuccessRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	q := newTestQueue(store, &memNotifier{})

	var retried []int64
	q.Register(domain.OpUpload, func(_ context.Context, failed domain.FailedOperation) error {
		retried = append(retried, failed.ItemID)
		return nil
	})

	_ = q.RecordFailed(ctx, domain.OpUpload, 1, "a.jpg", string(storage.CodeTimeout), "timeout")

	summary, err := q.RetryAll(ctx)
	if err != nil {
		t.Fatalf("retry all: %v", err)
	}
	if summary.Attempted != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Fatalf("retried = %v", retried)
	}
	if len(store.entries) != 0 {
		t.Fatalf("entries after success = %v", store.entries)
	}
}

func TestRetryAllFailureReRecords(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	q := newTestQueue(store, &memNotifier{})
	q.Register(domain.OpUpload, func(context.Context, domain.FailedOperation) error {
		return &storage.Error{Op: "put", Key: "a.jpg", Code: storage.CodeTimeout, Err: errors.New("still broken")}
	})

	_ = q.RecordFailed(ctx, domain.OpUpload, 1, "a.jpg", string(storage.CodeTimeout), "timeout")

	summary, err := q.RetryAll(ctx)
	if err != nil {
		t.Fatalf("retry all: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	entries, _ := store.List(ctx)
	if len(entries) != 1 || entries[0].RetryCount != 2 {
		t.Fatalf("entries = %+v, want retry count 2", entries)
	}
}

func TestRetryAllDropsEntryWhenFailureTurnsTerminal(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	notifier := &memNotifier{}
	q := newTestQueue(store, notifier)
	q.Register(domain.OpUpload, func(context.Context, domain.FailedOperation) error {
		return &storage.Error{Op: "put", Key: "a.jpg", Code: storage.CodeAccessDenied, Err: errors.New("denied")}
	})

	_ = q.RecordFailed(ctx, domain.OpUpload, 1, "a.jpg", string(storage.CodeTimeout), "timeout")

	summary, err := q.RetryAll(ctx)
	if err != nil {
		t.Fatalf("retry all: %v", err)
	}
	if summary.Failed != 1 || summary.Purged != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(store.entries) != 0 {
		t.Fatalf("entries = %v, terminal failure must leave the queue", store.entries)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("notified = %v", notifier.notified)
	}
}

func TestRetryAllPurgesExhaustedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemFailureStore()
	notifier := &memNotifier{}
	q := newTestQueue(store, notifier)
	q.Register(domain.OpDelete, func(context.Context, domain.FailedOperation) error {
		t.Fatal("exhausted entry must not be retried")
		return nil
	})

	store.entries[storeKey(domain.OpDelete, 9)] = &domain.FailedOperation{
		Operation:  domain.OpDelete,
		ItemID:     9,
		Reference:  "media/s3/test/z.jpg",
		RetryCount: MaxRetries,
	}

	summary, err := q.RetryAll(ctx)
	if err != nil {
		t.Fatalf("retry all: %v", err)
	}
	if summary.Purged != 1 || summary.Attempted != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("notified = %v, want exactly one terminal report", notifier.notified)
	}
	if len(store.entries) != 0 {
		t.Fatal("exhausted entry must be deleted")
	}

	// A second pass finds nothing; no duplicate notification.
	if _, err := q.RetryAll(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("notified = %v, want no duplicates", notifier.notified)
	}
}

func TestDelayDoublesPerAttempt(t *testing.T) {
	base := 2 * time.Second
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}
	for i, w := range want {
		if got := Delay(base, i+1); got != w {
			t.Errorf("Delay(attempt %d) = %s, want %s", i+1, got, w)
		}
	}
	if got := Delay(base, 0); got != base {
		t.Errorf("Delay(attempt 0) = %s, want base", got)
	}
}
