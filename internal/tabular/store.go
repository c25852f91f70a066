// Package tabular abstracts the row-oriented store the CRM lives in.
// Addressing is 1-based; row 1 is the header row.
package tabular

import (
	"context"
	"errors"
)

// ErrSheetMissing marks a read against a sheet that does not exist. The
// orchestrator treats it as a category-level configuration fault.
var ErrSheetMissing = errors.New("sheet not found")

// Store is the narrow tabular surface the record writers need. Implementations
// exist for Google Sheets (runtime), Postgres, and in-memory (offline/tests).
type Store interface {
	// Rows returns every row of the sheet, header included.
	Rows(ctx context.Context, sheet string) ([][]string, error)
	// SetRows overwrites rows starting at startRow (1-based).
	SetRows(ctx context.Context, sheet string, startRow int, rows [][]string) error
	// Append adds rows after the last populated row.
	Append(ctx context.Context, sheet string, rows [][]string) error
	// SetCell overwrites a single cell (1-based row and column).
	SetCell(ctx context.Context, sheet string, row, col int, value string) error
}
