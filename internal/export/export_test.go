package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/snapshot"
)

type mockHistory struct {
	byCutoff map[string]snapshot.MarketSnapshot
	calls    []time.Time
}

// GetNearestBefore returns the newest stored snapshot dated before date.
func (m *mockHistory) GetNearestBefore(_ context.Context, date time.Time) (*snapshot.Snapshot, error) {
	m.calls = append(m.calls, date)
	var best *snapshot.MarketSnapshot
	for _, s := range m.byCutoff {
		if s.Date.Before(date) && (best == nil || s.Date.After(best.Date)) {
			s := s
			best = &s
		}
	}
	if best == nil {
		return nil, snapshot.ErrNotFound
	}
	data, err := json.Marshal(best)
	if err != nil {
		return nil, err
	}
	return &snapshot.Snapshot{SnapshotDate: best.Date, Data: data}, nil
}

type recordingWriter struct {
	reports []Report
	err     error
}

func (w *recordingWriter) Write(_ context.Context, report Report) error {
	w.reports = append(w.reports, report)
	return w.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var reportDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func currentSnapshot() snapshot.MarketSnapshot {
	return snapshot.MarketSnapshot{
		Date:    reportDate,
		Rate:    domain.ExchangeRate{APerB: dec("0.001")},
		USDPerA: decPtr("0.02"),
		Collections: []snapshot.CollectionSnapshot{
			{Address: "0xAAA", Name: "Alpha", Symbol: "ALPHA", Floor: decPtr("120"), FloorUSD: decPtr("2.4"), ListedCount: 4,
				Volume: &domain.VolumeStats{VolumeA: dec("100"), VolumeB: dec("1000"), EquivalentA: dec("101"), Sales: 3}},
			{Address: "0xBBB", Name: "Beta", Symbol: "BETA", ListedCount: 0},
		},
		TotalVolumeA: dec("101"),
		TotalListed:  4,
		TotalSales:   3,
		Missing:      []string{"0xBBB"},
	}
}

func TestBuildReportChanges(t *testing.T) {
	history := &mockHistory{byCutoff: map[string]snapshot.MarketSnapshot{
		"week": {Date: reportDate.AddDate(0, 0, -7), Collections: []snapshot.CollectionSnapshot{
			{Address: "0xaaa", Floor: decPtr("100")},
		}},
		"month": {Date: reportDate.AddDate(0, 0, -30), Collections: []snapshot.CollectionSnapshot{
			{Address: "0xaaa", Floor: decPtr("150")},
		}},
	}}
	svc := NewService(history)

	report := svc.BuildReport(context.Background(), currentSnapshot())

	if len(report.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(report.Rows))
	}
	alpha := report.Rows[0]
	if alpha.WeekChange == nil || !alpha.WeekChange.Equal(dec("0.2")) {
		t.Errorf("WeekChange = %v, want 0.2", alpha.WeekChange)
	}
	if alpha.MonthChange == nil || !alpha.MonthChange.Equal(dec("-0.2")) {
		t.Errorf("MonthChange = %v, want -0.2", alpha.MonthChange)
	}
	if report.Rows[1].WeekChange != nil {
		t.Errorf("beta WeekChange = %v, want nil without a floor", report.Rows[1].WeekChange)
	}
	if !report.VolumeA.Equal(dec("101")) || report.Sales != 3 || report.Listed != 4 {
		t.Errorf("totals = %s/%d/%d", report.VolumeA, report.Sales, report.Listed)
	}
}

func TestBuildReportWithoutHistory(t *testing.T) {
	report := NewService(nil).BuildReport(context.Background(), currentSnapshot())
	for _, r := range report.Rows {
		if r.WeekChange != nil || r.MonthChange != nil {
			t.Errorf("%s: changes should be nil without history", r.Symbol)
		}
	}
}

func TestExportWritesToAllWriters(t *testing.T) {
	failing := &recordingWriter{err: errors.New("quota exceeded")}
	ok := &recordingWriter{}
	svc := NewService(&mockHistory{}, failing, ok)

	err := svc.Export(context.Background(), currentSnapshot())
	if err == nil {
		t.Fatal("expected error from failing writer")
	}
	if len(ok.reports) != 1 {
		t.Errorf("second writer got %d reports, want 1", len(ok.reports))
	}
}

func TestBuildMarket(t *testing.T) {
	report := NewService(nil).BuildReport(context.Background(), currentSnapshot())
	data := buildMarket(report)

	if len(data) != 4 {
		t.Fatalf("rows = %d, want header + 2 + total", len(data))
	}
	if data[0][0] != "Collection" || len(data[0]) != len(marketHeader) {
		t.Errorf("header = %v", data[0])
	}
	if v, ok := data[1][3].(float64); !ok || v != 120 {
		t.Errorf("alpha floor = %v, want 120", data[1][3])
	}
	if v, ok := data[1][4].(float64); !ok || v != 2.4 {
		t.Errorf("alpha floor USD = %v, want 2.4", data[1][4])
	}
	if data[2][3] != nil {
		t.Errorf("beta floor = %v, want nil", data[2][3])
	}
	if v, ok := data[1][11].(int64); !ok || v != 3 {
		t.Errorf("alpha sales = %v, want 3", data[1][11])
	}
	for col := 8; col <= 11; col++ {
		if data[2][col] != nil {
			t.Errorf("beta volume cell %d = %v, want empty when unread", col, data[2][col])
		}
	}
	total := data[3]
	if total[0] != "Total" || total[11] != int64(3) {
		t.Errorf("total row = %v", total)
	}
}
