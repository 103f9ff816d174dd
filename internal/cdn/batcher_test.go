package cdn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeInvalidator struct {
	calls    [][]string
	failCall int // 1-based call index to fail; 0 fails nothing
}

func (f *fakeInvalidator) Invalidate(_ context.Context, paths []string) (string, error) {
	f.calls = append(f.calls, append([]string(nil), paths...))
	if f.failCall > 0 && len(f.calls) == f.failCall {
		return "", errors.New("cdn unavailable")
	}
	return fmt.Sprintf("req-%d", len(f.calls)), nil
}

type memPendingStore struct {
	saved []string
}

func (s *memPendingStore) Load(context.Context) ([]string, error) {
	return append([]string(nil), s.saved...), nil
}

func (s *memPendingStore) Save(_ context.Context, paths []string) error {
	s.saved = append([]string(nil), paths...)
	return nil
}

// newTestBatcher disables the wall-clock timer so tests flush explicitly.
func newTestBatcher(inv Invalidator, store PendingStore) (*Batcher, *int) {
	b := NewBatcher(inv, store, time.Minute)
	scheduled := 0
	b.schedule = func(time.Duration, func()) *time.Timer {
		scheduled++
		return time.NewTimer(time.Hour)
	}
	return b, &scheduled
}

func TestQueueDeduplicatesAndNormalizes(t *testing.T) {
	b, _ := newTestBatcher(&fakeInvalidator{}, &memPendingStore{})

	b.Queue("2024/a.jpg", "/2024/a.jpg", "2024/b.jpg", "2024/a.jpg")

	pending := b.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want 2 deduplicated paths", pending)
	}
	if pending[0] != "/2024/a.jpg" || pending[1] != "/2024/b.jpg" {
		t.Fatalf("pending = %v, want normalized leading slashes", pending)
	}
}

func TestQueueSchedulesExactlyOneFlush(t *testing.T) {
	b, scheduled := newTestBatcher(&fakeInvalidator{}, &memPendingStore{})

	b.Queue("a.jpg")
	b.Queue("b.jpg")
	b.Queue("c.jpg")

	if *scheduled != 1 {
		t.Fatalf("scheduled = %d flushes, want 1 coalesced", *scheduled)
	}
}

func TestFlushChunksAtLimit(t *testing.T) {
	inv := &fakeInvalidator{}
	b, _ := newTestBatcher(inv, &memPendingStore{})

	var paths []string
	for i := 0; i < MaxPathsPerRequest+7; i++ {
		paths = append(paths, fmt.Sprintf("img-%02d.jpg", i))
	}
	b.Queue(paths...)

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(inv.calls) != 2 {
		t.Fatalf("calls = %d, want 2 chunks", len(inv.calls))
	}
	if len(inv.calls[0]) != MaxPathsPerRequest {
		t.Fatalf("first chunk = %d paths, want %d", len(inv.calls[0]), MaxPathsPerRequest)
	}
	if len(inv.calls[1]) != 7 {
		t.Fatalf("second chunk = %d paths, want 7", len(inv.calls[1]))
	}
	if len(b.Pending()) != 0 {
		t.Fatalf("pending after flush = %v", b.Pending())
	}
}

func TestFlushFailureRequeuesRemainder(t *testing.T) {
	inv := &fakeInvalidator{failCall: 2}
	store := &memPendingStore{}
	b, scheduled := newTestBatcher(inv, store)

	var paths []string
	for i := 0; i < MaxPathsPerRequest*2+3; i++ {
		paths = append(paths, fmt.Sprintf("img-%02d.jpg", i))
	}
	b.Queue(paths...)
	before := *scheduled

	if err := b.Flush(context.Background()); err == nil {
		t.Fatal("expected chunk failure to surface")
	}

	// Chunk 1 went out; chunks 2 and 3 stay queued.
	pending := b.Pending()
	want := MaxPathsPerRequest + 3
	if len(pending) != want {
		t.Fatalf("pending = %d paths, want %d requeued", len(pending), want)
	}
	if pending[0] != "/img-15.jpg" {
		t.Fatalf("pending[0] = %q, failed chunk must lead the requeue", pending[0])
	}
	if *scheduled != before+1 {
		t.Fatalf("retry not scheduled")
	}
	// The requeued set is persisted for restart recovery.
	if len(store.saved) != want {
		t.Fatalf("persisted = %d paths, want %d", len(store.saved), want)
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	inv := &fakeInvalidator{}
	b, _ := newTestBatcher(inv, &memPendingStore{})

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("calls = %v, want none", inv.calls)
	}
}

func TestRestoreReloadsPersistedPaths(t *testing.T) {
	store := &memPendingStore{saved: []string{"/a.jpg", "/b.jpg"}}
	b, scheduled := newTestBatcher(&fakeInvalidator{}, store)

	if err := b.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(b.Pending()) != 2 {
		t.Fatalf("pending = %v", b.Pending())
	}
	if *scheduled != 1 {
		t.Fatalf("restore must schedule a flush")
	}
}
