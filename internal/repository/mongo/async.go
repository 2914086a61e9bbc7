package mongo

import (
	"context"
	"log/slog"
	"time"

	"recwatch/internal/domain"
	"recwatch/internal/metrics"
)

// Recorder appends one event record to a journal.
type Recorder interface {
	Record(ctx context.Context, rec domain.EventRecord) error
}

// AsyncRecorder decouples journal writes from the feed read loop. Enqueue
// never blocks: a dedicated worker drains the queue, and a full queue drops
// the record instead of stalling frame processing.
type AsyncRecorder struct {
	recorder Recorder
	queue    chan domain.EventRecord
	logger   *slog.Logger
	timeout  time.Duration
}

func NewAsyncRecorder(recorder Recorder, logger *slog.Logger, buffer int) *AsyncRecorder {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncRecorder{
		recorder: recorder,
		queue:    make(chan domain.EventRecord, buffer),
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// Enqueue hands the record to the worker goroutine. It returns false when
// the queue is full and the record was dropped.
func (a *AsyncRecorder) Enqueue(rec domain.EventRecord) bool {
	select {
	case a.queue <- rec:
		return true
	default:
		metrics.JournalWriteErrors.Inc()
		a.logger.Warn("journal queue full, dropping record", slog.String("kind", rec.Kind))
		return false
	}
}

// Run drains the queue until ctx is cancelled. Call it in its own goroutine.
func (a *AsyncRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-a.queue:
			writeCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
			if err := a.recorder.Record(writeCtx, rec); err != nil {
				metrics.JournalWriteErrors.Inc()
				a.logger.Warn("journal write failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
