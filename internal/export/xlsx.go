package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxMarketSheet  = "Market"
	xlsxSummarySheet = "Summary"
)

// XLSXWriter writes a market report as an Excel workbook.
type XLSXWriter struct {
	out io.Writer
}

// NewXLSXWriter creates a writer that streams the workbook to out.
func NewXLSXWriter(out io.Writer) *XLSXWriter {
	return &XLSXWriter{out: out}
}

func (w *XLSXWriter) Write(_ context.Context, report Report) error {
	f, err := BuildWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w.out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// BuildWorkbook lays the report out on a Market sheet and a Summary sheet.
func BuildWorkbook(report Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", xlsxMarketSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(xlsxSummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating summary sheet: %w", err)
	}

	if err := writeMarketSheet(f, report); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummarySheet(f, report); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func writeMarketSheet(f *excelize.File, report Report) error {
	for i, row := range buildMarket(report) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(xlsxMarketSheet, cell, &row); err != nil {
			return fmt.Errorf("writing market row %d: %w", i+1, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9EAD3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(marketHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxMarketSheet, "A1", lastCol+"1", header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return fmt.Errorf("creating percent style: %w", err)
	}
	last := len(report.Rows) + 1
	if last > 1 {
		if err := f.SetCellStyle(xlsxMarketSheet, "F2", fmt.Sprintf("G%d", last), percent); err != nil {
			return fmt.Errorf("styling changes: %w", err)
		}
	}

	if err := f.SetColWidth(xlsxMarketSheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxMarketSheet, "C", "C", 44); err != nil {
		return err
	}
	return f.SetPanes(xlsxMarketSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, report Report) error {
	rows := [][]any{
		{"Date", report.Date.UTC().Format("2006-01-02")},
		{"Collections", len(report.Rows)},
	}
	for _, col := range monitoringColumns {
		rows = append(rows, []any{col.header, col.value(report)})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(xlsxSummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(xlsxSummarySheet, "A", "A", 20)
}
