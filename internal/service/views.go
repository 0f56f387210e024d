package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultViewFlushInterval is how often buffered plan views reach PostgreSQL.
const DefaultViewFlushInterval = 30 * time.Second

// ViewSink persists accumulated plan views.
type ViewSink interface {
	IncrementViews(ctx context.Context, id int64, n int64) error
}

// ViewFlusher moves plan view counters from Redis to PostgreSQL.
type ViewFlusher struct {
	counter  ViewCounter
	sink     ViewSink
	interval time.Duration
	logger   *slog.Logger

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewViewFlusher creates a new ViewFlusher.
func NewViewFlusher(counter ViewCounter, sink ViewSink, interval time.Duration, logger *slog.Logger) *ViewFlusher {
	if interval <= 0 {
		interval = DefaultViewFlushInterval
	}
	return &ViewFlusher{
		counter:  counter,
		sink:     sink,
		interval: interval,
		logger:   logger.With("component", "service.view_flusher"),
	}
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (f *ViewFlusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("view flusher already started")
	}
	f.started = true
	f.done = make(chan struct{})
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(finalCtx)
			cancel()
			return nil
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Shutdown stops Run and waits for the final flush.
// It implements server.ShutdownFunc.
func (f *ViewFlusher) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return nil
	}
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush drains the counters once. Counts that fail to persist go back to Redis.
// It returns the number of views written.
func (f *ViewFlusher) Flush(ctx context.Context) int64 {
	counts, err := f.counter.DrainViews(ctx)
	if err != nil {
		f.logger.Error("failed to drain views", "error", err)
	}
	if len(counts) == 0 {
		return 0
	}

	var written int64
	failed := make(map[int64]int64)
	for id, n := range counts {
		if err := f.sink.IncrementViews(ctx, id, n); err != nil {
			f.logger.Warn("failed to persist views", "plan_id", id, "error", err)
			failed[id] = n
			continue
		}
		written += n
	}

	if len(failed) > 0 {
		if err := f.counter.RestoreViews(context.WithoutCancel(ctx), failed); err != nil {
			f.logger.Error("failed to restore views", "plans", len(failed), "error", err)
		}
	}
	if written > 0 {
		f.logger.Debug("plan views flushed", "views", written, "plans", len(counts)-len(failed))
	}
	return written
}
