package export

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const marketSheet = "MARKET"

// SheetsWriter implements Writer using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write rewrites the MARKET sheet and appends a row to MONITORING.
func (w *SheetsWriter) Write(ctx context.Context, report Report) error {
	if _, err := w.ensureSheets(ctx, marketSheet); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.Clear(
		w.spreadsheetID,
		marketSheet+"!A:L",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing %s sheet: %w", marketSheet, err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		marketSheet+"!A1",
		&sheets.ValueRange{Values: buildMarket(report)},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s sheet: %w", marketSheet, err)
	}

	return w.AppendMonitoring(ctx, report)
}

var marketHeader = []any{
	"Collection", "Symbol", "Address",
	"Floor SGB", "Floor USD", "Week", "Month",
	"Listed", "Volume SGB", "Volume POND", "Volume SGB eq.", "Sales",
}

// buildMarket builds the MARKET sheet data followed by a totals row.
func buildMarket(report Report) [][]any {
	data := make([][]any, 0, len(report.Rows)+2)
	data = append(data, marketHeader)

	for _, row := range report.Rows {
		line := []any{
			row.Name, row.Symbol, row.Address,
			ptrFloat(row.Floor), ptrFloat(row.FloorUSD),
			ptrFloat(row.WeekChange), ptrFloat(row.MonthChange),
			row.ListedCount,
			nil, nil, nil, nil,
		}
		if v := row.Volume; v != nil {
			line[8], line[9], line[10], line[11] = toFloat(v.VolumeA), toFloat(v.VolumeB), toFloat(v.EquivalentA), v.Sales
		}
		data = append(data, line)
	}

	data = append(data, []any{
		"Total", "", "", nil, nil, nil, nil,
		report.Listed, nil, nil, toFloat(report.VolumeA), report.Sales,
	})
	return data
}

// sheetMeta is the identity of a sheet tab.
type sheetMeta struct {
	id         int64
	bandingIDs []int64
}

// ensureSheets creates any of the named sheets that do not already exist and returns their metadata.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]sheetMeta, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	meta := make(map[string]sheetMeta, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		m := sheetMeta{id: s.Properties.SheetId}
		for _, b := range s.BandedRanges {
			m.bandingIDs = append(m.bandingIDs, b.BandedRangeId)
		}
		meta[s.Properties.Title] = m
	}

	var requests []*sheets.Request
	for _, name := range names {
		if _, ok := meta[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return meta, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating sheets: %w", err)
	}
	for _, r := range resp.Replies {
		if r.AddSheet != nil && r.AddSheet.Properties != nil {
			meta[r.AddSheet.Properties.Title] = sheetMeta{id: r.AddSheet.Properties.SheetId}
		}
	}

	return meta, nil
}

func cellFormatReq(sheetID, startRow, endRow, startCol, endCol int64, format *sheets.CellFormat, fields string) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: startCol,
				EndColumnIndex:   endCol,
			},
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: fields,
		},
	}
}
