package mongo

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"recwatch/internal/domain"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.EventRecord
	block   chan struct{}
}

func (f *fakeRecorder) Record(ctx context.Context, rec domain.EventRecord) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) recorded() []domain.EventRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventRecord, len(f.records))
	copy(out, f.records)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForRecords(t *testing.T, f *fakeRecorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(f.recorded()) == n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected %d records, got %d", n, len(f.recorded()))
}

func TestAsyncRecorder_WritesInBackground(t *testing.T) {
	f := &fakeRecorder{}
	a := NewAsyncRecorder(f, discardLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	if !a.Enqueue(domain.EventRecord{Kind: "download_completed", DownloadID: "d1"}) {
		t.Fatal("enqueue rejected with an empty queue")
	}
	if !a.Enqueue(domain.EventRecord{Kind: "download_failed", DownloadID: "d2"}) {
		t.Fatal("enqueue rejected with a non-full queue")
	}

	waitForRecords(t, f, 2)
	recs := f.recorded()
	if recs[0].DownloadID != "d1" || recs[1].DownloadID != "d2" {
		t.Fatalf("records out of order: %v", recs)
	}
}

// Enqueue is called from the feed read loop, so it must never wait on the
// journal backend. A stalled backend fills the queue; further records are
// dropped, not blocked on.
func TestAsyncRecorder_EnqueueNeverBlocks(t *testing.T) {
	f := &fakeRecorder{block: make(chan struct{})}
	a := NewAsyncRecorder(f, discardLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	// One record stuck in the worker plus two queued fills the pipeline.
	start := time.Now()
	accepted := 0
	for i := 0; i < 5; i++ {
		if a.Enqueue(domain.EventRecord{Kind: "download_failed"}) {
			accepted++
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("enqueue blocked for %v", elapsed)
	}
	if accepted == 5 {
		t.Fatal("expected at least one record dropped with a stalled backend")
	}

	close(f.block)
	waitForRecords(t, f, accepted)
}

func TestAsyncRecorder_RunStopsOnCancel(t *testing.T) {
	f := &fakeRecorder{}
	a := NewAsyncRecorder(f, discardLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
