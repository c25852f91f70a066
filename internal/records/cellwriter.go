package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/threadstock/threadstock/internal/tabular"
)

// CellWriter is the compatibility path kept for stores where range writes
// misbehave: updates touch one cell at a time. Semantics match BatchWriter
// exactly; only the call volume differs.
type CellWriter struct {
	Store       tabular.Store
	Sheets      Sheets
	Commissions CommissionSource
	Clock       func() time.Time
}

func NewCellWriter(store tabular.Store, sheets Sheets, commissions CommissionSource) *CellWriter {
	return &CellWriter{Store: store, Sheets: sheets, Commissions: commissions, Clock: time.Now}
}

func (w *CellWriter) Write(ctx context.Context, rec Record) error {
	switch r := rec.(type) {
	case StockItem:
		return w.upsertStock(ctx, r)
	case SaleEvent:
		return appendSale(ctx, w.Store, w.Sheets, w.Commissions, w.Clock, r)
	case PurchaseEvent:
		return appendPurchase(ctx, w.Store, w.Sheets, r)
	case EngagementEvent:
		return w.bumpCounter(ctx, r)
	default:
		return fmt.Errorf("unsupported record kind %q", rec.Kind())
	}
}

func (w *CellWriter) upsertStock(ctx context.Context, item StockItem) error {
	rows, err := w.Store.Rows(ctx, w.Sheets.Stock)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	idx := findBySKU(rows, item.SKU)
	if idx == 0 {
		// New rows are appended whole; there is no cell-wise append.
		row := newStockRow(item, w.Clock())
		if err := w.Store.Append(ctx, w.Sheets.Stock, [][]string{row}); err != nil {
			return fmt.Errorf("append stock %s: %w", item.SKU, err)
		}
		return nil
	}

	existing := padRow(rows[idx-1], stockColumns)
	merged := mergeStockRow(rows[idx-1], item, w.Clock())
	for col := 1; col <= stockColumns; col++ {
		if merged[col-1] == existing[col-1] {
			continue
		}
		if err := w.Store.SetCell(ctx, w.Sheets.Stock, idx, col, merged[col-1]); err != nil {
			return fmt.Errorf("update stock %s col %d: %w", item.SKU, col, err)
		}
	}
	return nil
}

func (w *CellWriter) bumpCounter(ctx context.Context, ev EngagementEvent) error {
	rows, err := w.Store.Rows(ctx, w.Sheets.Stock)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	idx := findBySKU(rows, ev.SKU)
	if idx == 0 {
		return nil
	}
	row := padRow(rows[idx-1], stockColumns)
	col := counterColumn(ev.Action)
	next := strconv.Itoa(counterValue(row[col-1]) + 1)
	if err := w.Store.SetCell(ctx, w.Sheets.Stock, idx, col, next); err != nil {
		return fmt.Errorf("bump %s counter for %s: %w", ev.Action, strings.TrimSpace(ev.SKU), err)
	}
	return nil
}

var (
	_ Writer = (*BatchWriter)(nil)
	_ Writer = (*CellWriter)(nil)
)
