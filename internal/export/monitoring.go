package export

import (
	"context"
	"fmt"

	sheets "google.golang.org/api/sheets/v4"
)

const monitoringSheet = "MONITORING"

// monitoringCol describes one protocol-wide column in the MONITORING sheet.
type monitoringCol struct {
	header string
	value  func(Report) any
}

// monitoringColumns are the fixed columns after Date. Per-collection floors follow them.
var monitoringColumns = []monitoringCol{
	{header: "Volume SGB eq.", value: func(r Report) any { return toFloat(r.VolumeA) }},
	{header: "Listed", value: func(r Report) any { return r.Listed }},
	{header: "Sales", value: func(r Report) any { return r.Sales }},
	{header: "SGB per POND", value: func(r Report) any { return toFloat(r.APerB) }},
	{header: "SGB USD", value: func(r Report) any { return ptrFloat(r.USDPerA) }},
}

// buildMonitoringRows builds the header row and a single data row for the MONITORING sheet.
func buildMonitoringRows(report Report) (header, data []any) {
	width := 1 + len(monitoringColumns) + len(report.Rows)
	header = make([]any, 0, width)
	data = make([]any, 0, width)

	header = append(header, "Date")
	data = append(data, report.Date.UTC().Format("02.01.2006"))

	for _, col := range monitoringColumns {
		header = append(header, col.header)
		data = append(data, col.value(report))
	}
	for _, row := range report.Rows {
		header = append(header, row.Symbol+" floor")
		data = append(data, ptrFloat(row.Floor))
	}

	return header, data
}

// AppendMonitoring ensures the MONITORING sheet exists, rewrites its header row,
// then appends one data row for the report date.
func (w *SheetsWriter) AppendMonitoring(ctx context.Context, report Report) error {
	meta, err := w.ensureSheets(ctx, monitoringSheet)
	if err != nil {
		return fmt.Errorf("ensuring %s sheet: %w", monitoringSheet, err)
	}

	header, dataRow := buildMonitoringRows(report)

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		monitoringSheet+"!A1",
		&sheets.ValueRange{Values: [][]any{header}},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s header: %w", monitoringSheet, err)
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		monitoringSheet+"!A:A",
		&sheets.ValueRange{Values: [][]any{dataRow}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s row: %w", monitoringSheet, err)
	}

	if err := w.applyMonitoringFormatting(ctx, meta[monitoringSheet], int64(len(header))); err != nil {
		return fmt.Errorf("formatting %s sheet: %w", monitoringSheet, err)
	}

	return nil
}

// applyMonitoringFormatting gives the header a light-green bold row, freezes it with the date column
// and sets a d.m.yyyy date format.
func (w *SheetsWriter) applyMonitoringFormatting(ctx context.Context, mon sheetMeta, totalCols int64) error {
	lightGreen := &sheets.Color{Red: 0.851, Green: 0.918, Blue: 0.827}

	var reqs []*sheets.Request

	reqs = append(reqs, cellFormatReq(mon.id, 0, 1, 0, totalCols,
		&sheets.CellFormat{
			BackgroundColor:     lightGreen,
			TextFormat:          &sheets.TextFormat{Bold: true, FontSize: 9},
			HorizontalAlignment: "CENTER",
			VerticalAlignment:   "MIDDLE",
			WrapStrategy:        "WRAP",
		},
		"userEnteredFormat(backgroundColor,textFormat,horizontalAlignment,verticalAlignment,wrapStrategy)"))

	reqs = append(reqs, &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId: mon.id,
				GridProperties: &sheets.GridProperties{
					FrozenRowCount:    1,
					FrozenColumnCount: 1,
				},
			},
			Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
		},
	})

	reqs = append(reqs, cellFormatReq(mon.id, 1, 10000, 0, 1,
		&sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "DATE", Pattern: "d.m.yyyy"}},
		"userEnteredFormat.numberFormat"))

	for _, bid := range mon.bandingIDs {
		reqs = append(reqs, &sheets.Request{
			DeleteBanding: &sheets.DeleteBandingRequest{BandedRangeId: bid},
		})
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}
