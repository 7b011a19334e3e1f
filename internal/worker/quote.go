package worker

import (
	"context"
	"log/slog"
	"time"
)

// QuoteFetcher defines the interface for fetching and storing external quotes.
type QuoteFetcher interface {
	FetchAndStoreQuotes(ctx context.Context) error
}

// RunRecorder receives the outcome of every worker iteration.
type RunRecorder interface {
	ObserveWorkerRun(worker string, err error, at time.Time)
}

// QuoteWorker periodically fetches external price quotes.
type QuoteWorker struct {
	fetcher  QuoteFetcher
	interval time.Duration
	recorder RunRecorder
}

// NewQuoteWorker creates a new QuoteWorker. recorder may be nil.
func NewQuoteWorker(fetcher QuoteFetcher, interval time.Duration, recorder RunRecorder) *QuoteWorker {
	return &QuoteWorker{
		fetcher:  fetcher,
		interval: interval,
		recorder: recorder,
	}
}

func (w *QuoteWorker) fetch(ctx context.Context, what string) {
	err := w.fetcher.FetchAndStoreQuotes(ctx)
	if err != nil {
		slog.Error("QuoteWorker: "+what+" failed", "error", err)
	} else {
		slog.Info("QuoteWorker: " + what + " completed")
	}
	if w.recorder != nil {
		w.recorder.ObserveWorkerRun("quote", err, time.Now())
	}
}

// Run starts the quote worker loop. It blocks until the context is cancelled.
func (w *QuoteWorker) Run(ctx context.Context) {
	slog.Info("QuoteWorker: starting")

	// Fetch immediately on startup
	w.fetch(ctx, "initial fetch")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("QuoteWorker: shutting down")
			return
		case <-ticker.C:
			w.fetch(ctx, "fetch")
		}
	}
}
