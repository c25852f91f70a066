// internal/runtime/sheetsapi.go — adapts *sheets.Service to the tabular interface
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.com/threadstock/threadstock/internal/tabular"
)

// SheetsAdapter implements tabular.Store on one spreadsheet, with each sheet
// name mapping to a tab.
type SheetsAdapter struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsAdapter(svc *sheets.Service, spreadsheetID string) *SheetsAdapter {
	return &SheetsAdapter{svc: svc, spreadsheetID: spreadsheetID}
}

func (s *SheetsAdapter) Rows(ctx context.Context, sheet string) ([][]string, error) {
	res, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteRange(sheet)).Context(ctx).Do()
	if err != nil {
		return nil, wrapSheetErr(sheet, err)
	}
	out := make([][]string, len(res.Values))
	for i, row := range res.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (s *SheetsAdapter) SetRows(ctx context.Context, sheet string, startRow int, rows [][]string) error {
	vr := &sheets.ValueRange{Values: toValues(rows)}
	rng := fmt.Sprintf("%s!A%d", quoteSheet(sheet), startRow)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapSheetErr(sheet, err)
	}
	return nil
}

func (s *SheetsAdapter) Append(ctx context.Context, sheet string, rows [][]string) error {
	vr := &sheets.ValueRange{Values: toValues(rows)}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteRange(sheet), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return wrapSheetErr(sheet, err)
	}
	return nil
}

func (s *SheetsAdapter) SetCell(ctx context.Context, sheet string, row, col int, value string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	rng := fmt.Sprintf("%s!%s%d", quoteSheet(sheet), columnLetter(col), row)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapSheetErr(sheet, err)
	}
	return nil
}

// EnsureSheet creates the tab with its header row when it does not exist yet.
func (s *SheetsAdapter) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	_, err := s.Rows(ctx, sheet)
	if err == nil {
		return nil
	}
	if !errors.Is(err, tabular.ErrSheetMissing) {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return s.SetRows(ctx, sheet, 1, [][]string{header})
}

var _ tabular.Store = (*SheetsAdapter)(nil)

// wrapSheetErr maps the API's unknown-range failure to ErrSheetMissing so
// callers can tell a configuration fault from an outage.
func wrapSheetErr(sheet string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", tabular.ErrSheetMissing, sheet)
	}
	return fmt.Errorf("sheet %s: %w", sheet, err)
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}

// quoteSheet wraps names that need quoting in A1 notation.
func quoteSheet(sheet string) string {
	if strings.ContainsAny(sheet, " !'") {
		return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet
}

func quoteRange(sheet string) string { return quoteSheet(sheet) }

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
