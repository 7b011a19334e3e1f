package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/snapshot"
)

// changePeriods are the look-back windows, in days, reported for each collection floor.
var changePeriods = []int{7, 30}

// MarketRow is one collection line of a market report.
type MarketRow struct {
	snapshot.CollectionSnapshot
	WeekChange  *decimal.Decimal
	MonthChange *decimal.Decimal
}

// Report is a market snapshot prepared for export.
type Report struct {
	Date    time.Time
	USDPerA *decimal.Decimal
	APerB   decimal.Decimal
	Rows    []MarketRow
	VolumeA decimal.Decimal
	Listed  int
	Sales   int64
}

// Writer writes a market report to a destination.
type Writer interface {
	Write(ctx context.Context, report Report) error
}

// SnapshotHistory provides past snapshots for period changes.
type SnapshotHistory interface {
	GetNearestBefore(ctx context.Context, date time.Time) (*snapshot.Snapshot, error)
}

// Service builds reports from snapshots and delegates writing to its writers.
type Service struct {
	history SnapshotHistory
	writers []Writer
}

// NewService creates a new export Service. history may be nil, in which case period changes are left empty.
func NewService(history SnapshotHistory, writers ...Writer) *Service {
	return &Service{history: history, writers: writers}
}

// Export builds the report of snap and hands it to every writer.
// A failing writer does not stop the others; their errors are joined.
// Implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context, snap snapshot.MarketSnapshot) error {
	report := s.BuildReport(ctx, snap)

	var errs []error
	for _, w := range s.writers {
		if err := w.Write(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("writing %T: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// BuildReport converts snap into a report with week and month floor changes.
func (s *Service) BuildReport(ctx context.Context, snap snapshot.MarketSnapshot) Report {
	historical := s.fetchHistorical(ctx, snap.Date, changePeriods)

	report := Report{
		Date:    snap.Date,
		USDPerA: snap.USDPerA,
		APerB:   snap.Rate.APerB,
		Rows:    make([]MarketRow, 0, len(snap.Collections)),
		VolumeA: snap.TotalVolumeA,
		Listed:  snap.TotalListed,
		Sales:   snap.TotalSales,
	}
	for _, c := range snap.Collections {
		report.Rows = append(report.Rows, MarketRow{
			CollectionSnapshot: c,
			WeekChange:         computeChange(c, historical[7]),
			MonthChange:        computeChange(c, historical[30]),
		})
	}
	return report
}

// fetchHistorical retrieves the snapshot preceding each period (days before date).
func (s *Service) fetchHistorical(ctx context.Context, date time.Time, periods []int) map[int]snapshot.MarketSnapshot {
	result := make(map[int]snapshot.MarketSnapshot, len(periods))
	if s.history == nil {
		return result
	}

	for _, days := range periods {
		row, err := s.history.GetNearestBefore(ctx, date.AddDate(0, 0, -days+1))
		if err != nil {
			if !errors.Is(err, snapshot.ErrNotFound) {
				slog.Warn("export: historical snapshot unavailable", "days", days, "error", err)
			}
			continue
		}
		hist, err := row.Decode()
		if err != nil {
			slog.Warn("export: failed to decode historical snapshot", "days", days, "error", err)
			continue
		}
		result[days] = hist
	}

	return result
}

// computeChange returns (current - historical) / historical of the floor, or nil if unavailable.
func computeChange(current snapshot.CollectionSnapshot, hist snapshot.MarketSnapshot) *decimal.Decimal {
	if current.Floor == nil {
		return nil
	}
	past, ok := hist.Collection(current.Address)
	if !ok || past.Floor == nil || past.Floor.IsZero() {
		return nil
	}
	pct := current.Floor.Sub(*past.Floor).Div(*past.Floor)
	return &pct
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
