package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/nftstate/internal/snapshot"
)

// SnapshotGenerator defines the interface for generating market snapshots.
type SnapshotGenerator interface {
	Generate(ctx context.Context, date time.Time) (snapshot.MarketSnapshot, error)
}

// AfterSnapshotHook is called after each successful snapshot generation.
type AfterSnapshotHook interface {
	Export(ctx context.Context, snap snapshot.MarketSnapshot) error
}

// HookFunc adapts a function to AfterSnapshotHook.
type HookFunc func(ctx context.Context, snap snapshot.MarketSnapshot) error

func (f HookFunc) Export(ctx context.Context, snap snapshot.MarketSnapshot) error {
	return f(ctx, snap)
}

// ReportWorker periodically generates market snapshots.
type ReportWorker struct {
	generator SnapshotGenerator
	interval  time.Duration
	hooks     []AfterSnapshotHook
	recorder  RunRecorder
	now       func() time.Time
}

// NewReportWorker creates a new ReportWorker with optional post-generation hooks. recorder may be nil.
func NewReportWorker(generator SnapshotGenerator, interval time.Duration, recorder RunRecorder, hooks ...AfterSnapshotHook) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		interval:  interval,
		hooks:     hooks,
		recorder:  recorder,
		now:       time.Now,
	}
}

// runHooks calls every post-generation hook. A failing hook does not stop the rest.
func (w *ReportWorker) runHooks(ctx context.Context, snap snapshot.MarketSnapshot) {
	for i, hook := range w.hooks {
		if err := hook.Export(ctx, snap); err != nil {
			slog.Error("ReportWorker: snapshot hook failed", "hook", i, "error", err)
		}
	}
}

// utcDate returns the date normalized to midnight UTC.
func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (w *ReportWorker) generate(ctx context.Context, what string) {
	snap, err := w.generator.Generate(ctx, utcDate(w.now()))
	if w.recorder != nil {
		w.recorder.ObserveWorkerRun("snapshot", err, w.now())
	}
	if err != nil {
		slog.Error("ReportWorker: "+what+" failed", "error", err)
		return
	}
	slog.Info("ReportWorker: "+what+" completed", "collections", len(snap.Collections))
	w.runHooks(ctx, snap)
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	// Generate immediately on startup
	w.generate(ctx, "initial generation")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			w.generate(ctx, "generation")
		}
	}
}
