package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockQuoteFetcher struct {
	callCount atomic.Int32
	err       error
}

func (m *mockQuoteFetcher) FetchAndStoreQuotes(_ context.Context) error {
	m.callCount.Add(1)
	return m.err
}

type runRecord struct {
	worker string
	err    error
}

type mockRecorder struct {
	mu   sync.Mutex
	runs []runRecord
}

func (m *mockRecorder) ObserveWorkerRun(worker string, err error, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, runRecord{worker: worker, err: err})
}

func (m *mockRecorder) snapshot() []runRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runRecord(nil), m.runs...)
}

func TestQuoteWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockQuoteFetcher{}
	w := NewQuoteWorker(mock, 50*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Should have run at least the initial fetch + some ticks
	if got := mock.callCount.Load(); got < 2 {
		t.Errorf("call count = %d, want >= 2", got)
	}
}

func TestQuoteWorkerRecordsFailures(t *testing.T) {
	mock := &mockQuoteFetcher{err: errors.New("rate limited")}
	rec := &mockRecorder{}
	w := NewQuoteWorker(mock, time.Hour, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	runs := rec.snapshot()
	if len(runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(runs))
	}
	if runs[0].worker != "quote" || runs[0].err == nil {
		t.Errorf("run = %+v, want failed quote run", runs[0])
	}
}
