package cdn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxPathsPerRequest is the provider's ceiling on paths per invalidation
// call; larger flushes are split.
const MaxPathsPerRequest = 15

const (
	defaultFlushDelay    = 30 * time.Second
	defaultRetryInterval = 5 * time.Minute
)

// Invalidator submits one invalidation request to the CDN and returns the
// provider's request id.
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) (string, error)
}

// PendingStore persists the pending set so queued paths survive a restart.
type PendingStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, paths []string) error
}

// Batcher coalesces invalidation paths and flushes them after a short
// delay, so one migration batch produces one or two CDN calls instead of
// one per file. On a flush failure the unsent remainder is requeued and a
// retry scheduled.
type Batcher struct {
	invalidator Invalidator
	store       PendingStore

	flushDelay    time.Duration
	retryInterval time.Duration

	// schedule is time.AfterFunc unless a test swaps it out.
	schedule func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	pending map[string]struct{}
	order   []string
	timer   *time.Timer
}

func NewBatcher(invalidator Invalidator, store PendingStore, flushDelay time.Duration) *Batcher {
	if flushDelay <= 0 {
		flushDelay = defaultFlushDelay
	}
	return &Batcher{
		invalidator:   invalidator,
		store:         store,
		flushDelay:    flushDelay,
		retryInterval: defaultRetryInterval,
		schedule:      time.AfterFunc,
		pending:       make(map[string]struct{}),
	}
}

// Restore reloads paths persisted by a previous process and schedules a
// flush for them.
func (b *Batcher) Restore(ctx context.Context) error {
	paths, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	log.Info().Int("paths", len(paths)).Msg("restored pending cdn invalidations")
	b.Queue(paths...)
	return nil
}

// Queue adds paths to the pending set. Paths are normalized to a leading
// slash and deduplicated; queueing an already-pending path is a no-op.
func (b *Batcher) Queue(paths ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := false
	for _, p := range paths {
		p = normalize(p)
		if p == "/" {
			continue
		}
		if _, ok := b.pending[p]; ok {
			continue
		}
		b.pending[p] = struct{}{}
		b.order = append(b.order, p)
		added = true
	}
	if !added {
		return
	}

	b.persistLocked()
	if b.timer == nil {
		b.timer = b.schedule(b.flushDelay, b.flushTimer)
	}
}

// Pending returns a copy of the queued paths in arrival order.
func (b *Batcher) Pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Flush sends every pending path now, in chunks of at most
// MaxPathsPerRequest. The first chunk failure stops the pass; the failed
// chunk and everything after it stay queued for the retry.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.order
	b.order = nil
	b.pending = make(map[string]struct{})
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.persistLocked()
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	for start := 0; start < len(batch); start += MaxPathsPerRequest {
		end := start + MaxPathsPerRequest
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]

		requestID, err := b.invalidator.Invalidate(ctx, chunk)
		if err != nil {
			b.requeue(batch[start:])
			log.Warn().Err(err).
				Int("paths", len(batch)-start).
				Dur("retry_in", b.retryInterval).
				Msg("cdn invalidation failed, requeued")
			return err
		}
		log.Info().
			Str("request_id", requestID).
			Int("paths", len(chunk)).
			Msg("cdn invalidation submitted")
	}
	return nil
}

func (b *Batcher) flushTimer() {
	if err := b.Flush(context.Background()); err != nil {
		log.Debug().Err(err).Msg("scheduled cdn flush failed")
	}
}

// requeue puts unsent paths back with a fresh retry timer. Paths queued in
// the meantime keep their position after the requeued ones.
func (b *Batcher) requeue(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	restored := make([]string, 0, len(paths)+len(b.order))
	seen := make(map[string]struct{}, len(paths)+len(b.order))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		restored = append(restored, p)
	}
	for _, p := range b.order {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		restored = append(restored, p)
	}
	b.order = restored
	b.pending = seen
	b.persistLocked()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = b.schedule(b.retryInterval, b.flushTimer)
}

// persistLocked best-effort mirrors the pending set to the store. Caller
// holds b.mu.
func (b *Batcher) persistLocked() {
	if b.store == nil {
		return
	}
	snapshot := make([]string, len(b.order))
	copy(snapshot, b.order)
	if err := b.store.Save(context.Background(), snapshot); err != nil {
		log.Warn().Err(err).Msg("could not persist pending cdn paths")
	}
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
