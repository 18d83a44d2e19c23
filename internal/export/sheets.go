package export

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsWriter implements TableWriter using the Google Sheets API.
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

// Write rewrites every regular table and appends one row to each Append table.
func (w *SheetsWriter) Write(ctx context.Context, tables []Table) error {
	ids, err := w.ensureSheets(ctx, lo.Map(tables, func(t Table, _ int) string { return t.Name })...)
	if err != nil {
		return err
	}

	replace, appendOnly := lo.FilterReject(tables, func(t Table, _ int) bool { return !t.Append })

	if len(replace) > 0 {
		_, err = w.svc.Spreadsheets.Values.BatchClear(
			w.spreadsheetID,
			&sheets.BatchClearValuesRequest{
				Ranges: lo.Map(replace, func(t Table, _ int) string { return t.Name }),
			},
		).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clearing sheets: %w", err)
		}

		_, err = w.svc.Spreadsheets.Values.BatchUpdate(
			w.spreadsheetID,
			&sheets.BatchUpdateValuesRequest{
				ValueInputOption: "USER_ENTERED",
				Data: lo.Map(replace, func(t Table, _ int) *sheets.ValueRange {
					return &sheets.ValueRange{Range: t.Name + "!A1", Values: tableValues(t)}
				}),
			},
		).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing sheets: %w", err)
		}
	}

	for _, t := range appendOnly {
		if err := w.appendRows(ctx, t); err != nil {
			return err
		}
	}

	if err := w.formatHeaders(ctx, lo.Values(ids)); err != nil {
		return fmt.Errorf("formatting sheets: %w", err)
	}
	return nil
}

// appendRows writes the header when the sheet is empty, then appends rows.
func (w *SheetsWriter) appendRows(ctx context.Context, t Table) error {
	existing, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, t.Name+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", t.Name, err)
	}
	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			t.Name+"!A1",
			&sheets.ValueRange{Values: [][]any{headerRow(t.Header)}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", t.Name, err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		t.Name+"!A:A",
		&sheets.ValueRange{Values: t.Rows},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s rows: %w", t.Name, err)
	}
	return nil
}

// ensureSheets creates any of the named sheets that do not exist and
// returns the sheet ID of each name.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]int64, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	ids := make(map[string]int64, len(names))
	for _, s := range spreadsheet.Sheets {
		if lo.Contains(names, s.Properties.Title) {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}

	missing := lo.Reject(names, func(name string, _ int) bool {
		_, ok := ids[name]
		return ok
	})
	if len(missing) == 0 {
		return ids, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{
			Requests: lo.Map(missing, func(name string, _ int) *sheets.Request {
				return &sheets.Request{
					AddSheet: &sheets.AddSheetRequest{
						Properties: &sheets.SheetProperties{Title: name},
					},
				}
			}),
		},
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating sheets: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return ids, nil
}

// formatHeaders makes row 1 bold on a grey background and freezes it.
// Sheet ID 0 is valid, so it is always sent.
func (w *SheetsWriter) formatHeaders(ctx context.Context, sheetIDs []int64) error {
	if len(sheetIDs) == 0 {
		return nil
	}
	grey := &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9}

	var reqs []*sheets.Request
	for _, id := range sheetIDs {
		reqs = append(reqs,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{SheetId: id, StartRowIndex: 0, EndRowIndex: 1, ForceSendFields: []string{"SheetId"}},
					Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: grey,
						TextFormat:      &sheets.TextFormat{Bold: true},
					}},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:         id,
						GridProperties:  &sheets.GridProperties{FrozenRowCount: 1},
						ForceSendFields: []string{"SheetId"},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}

// tableValues returns the header followed by the data rows.
func tableValues(t Table) [][]any {
	values := make([][]any, 0, len(t.Rows)+1)
	values = append(values, headerRow(t.Header))
	return append(values, t.Rows...)
}

func headerRow(header []string) []any {
	return lo.ToAnySlice(header)
}
