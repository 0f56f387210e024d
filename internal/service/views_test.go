package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestViewFlusherFlush(t *testing.T) {
	t.Parallel()

	c := newFakePlanCache()
	c.views[1] = 3
	c.views[2] = 5
	sink := newFakePlanStore()

	f := NewViewFlusher(c, sink, time.Minute, testLogger())
	if got := f.Flush(context.Background()); got != 8 {
		t.Fatalf("expected 8 views written, got %d", got)
	}
	if sink.views[1] != 3 || sink.views[2] != 5 {
		t.Fatalf("unexpected persisted views %v", sink.views)
	}
	if len(c.views) != 0 {
		t.Fatalf("expected drained counters, got %v", c.views)
	}
}

func TestViewFlusherRestoresOnFailure(t *testing.T) {
	t.Parallel()

	c := newFakePlanCache()
	c.views[4] = 2
	sink := newFakePlanStore()
	sink.viewErr = errors.New("database is down")

	f := NewViewFlusher(c, sink, time.Minute, testLogger())
	if got := f.Flush(context.Background()); got != 0 {
		t.Fatalf("expected nothing written, got %d", got)
	}
	if c.views[4] != 2 {
		t.Fatalf("expected views restored, got %v", c.views)
	}
}

func TestViewFlusherShutdownFlushes(t *testing.T) {
	t.Parallel()

	c := newFakePlanCache()
	sink := newFakePlanStore()
	f := NewViewFlusher(c, sink, time.Hour, testLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	// Wait for Run to register itself before counting a view.
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		started := f.started
		f.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.IncrementViews(context.Background(), 9); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.views[9] != 1 {
		t.Fatalf("expected the final flush to persist 1 view, got %d", sink.views[9])
	}
}
