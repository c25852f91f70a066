package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/threadstock/threadstock/internal/kpi"
	"github.com/threadstock/threadstock/internal/tabular"
)

// Writer applies a parsed record to the tabular store. Implementations differ
// only in write granularity: BatchWriter performs one bounded read and one
// bounded write per record, CellWriter is the cell-at-a-time compatibility
// path.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// BatchWriter is the fast path: every operation is a single read followed by
// a single range write against the store.
type BatchWriter struct {
	Store       tabular.Store
	Sheets      Sheets
	Commissions CommissionSource
	Clock       func() time.Time
}

func NewBatchWriter(store tabular.Store, sheets Sheets, commissions CommissionSource) *BatchWriter {
	return &BatchWriter{Store: store, Sheets: sheets, Commissions: commissions, Clock: time.Now}
}

func (w *BatchWriter) Write(ctx context.Context, rec Record) error {
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

// upsertStock merges the item into the row matching its sku, or appends a new
// row. Absent fields leave existing cells untouched; the creation date is set
// once and never overwritten.
func (w *BatchWriter) upsertStock(ctx context.Context, item StockItem) error {
	rows, err := w.Store.Rows(ctx, w.Sheets.Stock)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	idx := findBySKU(rows, item.SKU)
	if idx == 0 {
		row := newStockRow(item, w.Clock())
		if err := w.Store.Append(ctx, w.Sheets.Stock, [][]string{row}); err != nil {
			return fmt.Errorf("append stock %s: %w", item.SKU, err)
		}
		return nil
	}
	merged := mergeStockRow(rows[idx-1], item, w.Clock())
	if err := w.Store.SetRows(ctx, w.Sheets.Stock, idx, [][]string{merged}); err != nil {
		return fmt.Errorf("update stock %s: %w", item.SKU, err)
	}
	return nil
}

// bumpCounter increments the favorite or offer counter of the matching row.
// An unknown sku is silently dropped: there is no row to bump.
func (w *BatchWriter) bumpCounter(ctx context.Context, ev EngagementEvent) error {
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
	row[col-1] = strconv.Itoa(counterValue(row[col-1]) + 1)
	if err := w.Store.SetRows(ctx, w.Sheets.Stock, idx, [][]string{row}); err != nil {
		return fmt.Errorf("bump %s counter for %s: %w", ev.Action, ev.SKU, err)
	}
	return nil
}

func appendSale(ctx context.Context, store tabular.Store, sheets Sheets, commissions CommissionSource, clock func() time.Time, s SaleEvent) error {
	var com Commission
	if commissions != nil {
		com = commissions.CommissionFor(s.Platform)
	}
	fee := kpi.Fee(s.Price, com.Percent, com.FlatFee)
	row := make([]string, saleColumns)
	row[colSaleDate-1] = clock().Format(dateLayout)
	row[colSalePlatform-1] = string(s.Platform)
	row[colSaleTitle-1] = s.Title
	row[colSaleSKU-1] = s.SKU
	row[colSalePrice-1] = money(s.Price)
	row[colSaleFee-1] = money(fee)
	if err := store.Append(ctx, sheets.Sales, [][]string{row}); err != nil {
		return fmt.Errorf("append sale: %w", err)
	}
	return nil
}

func appendPurchase(ctx context.Context, store tabular.Store, sheets Sheets, p PurchaseEvent) error {
	row := make([]string, purchaseColumns)
	row[colPurchaseDate-1] = p.Date.Format(dateLayout)
	row[colPurchaseSupplier-1] = p.Supplier
	row[colPurchaseBrand-1] = p.Brand
	row[colPurchaseSize-1] = p.Size
	row[colPurchasePrice-1] = money(p.Price)
	if err := store.Append(ctx, sheets.Purchases, [][]string{row}); err != nil {
		return fmt.Errorf("append purchase: %w", err)
	}
	return nil
}

// findBySKU returns the 1-based row number whose sku column matches
// case-insensitively, or 0. Row 1 is the header and never matches.
func findBySKU(rows [][]string, sku string) int {
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rows[i][colStockSKU-1]), strings.TrimSpace(sku)) {
			return i + 1
		}
	}
	return 0
}

func newStockRow(item StockItem, now time.Time) []string {
	row := make([]string, stockColumns)
	row[colStockSKU-1] = item.SKU
	row[colStockTitle-1] = item.Title
	row[colStockBrand-1] = item.Brand
	row[colStockSize-1] = item.Size
	row[colStockCondition-1] = item.Condition
	row[colStockCategory-1] = item.Category
	row[colStockPlatform-1] = item.Platform
	row[colStockPhotos-1] = strings.Join(item.Photos, photoSeparator)
	row[colStockFavorites-1] = "0"
	row[colStockOffers-1] = "0"
	row[colStockCreated-1] = now.Format(timestampLayout)
	return row
}

func mergeStockRow(existing []string, item StockItem, now time.Time) []string {
	row := padRow(existing, stockColumns)
	setIfPresent(row, colStockTitle, item.Title)
	setIfPresent(row, colStockBrand, item.Brand)
	setIfPresent(row, colStockSize, item.Size)
	setIfPresent(row, colStockCondition, item.Condition)
	setIfPresent(row, colStockCategory, item.Category)
	setIfPresent(row, colStockPlatform, item.Platform)
	if len(item.Photos) > 0 {
		row[colStockPhotos-1] = strings.Join(item.Photos, photoSeparator)
	}
	if row[colStockCreated-1] == "" {
		row[colStockCreated-1] = now.Format(timestampLayout)
	}
	return row
}

func setIfPresent(row []string, col int, value string) {
	if value != "" {
		row[col-1] = value
	}
}

func padRow(row []string, width int) []string {
	out := append([]string(nil), row...)
	for len(out) < width {
		out = append(out, "")
	}
	return out
}

func counterColumn(kind EngagementKind) int {
	if kind == EngagementOffer {
		return colStockOffers
	}
	return colStockFavorites
}

// counterValue reads a counter cell leniently: anything non-numeric counts
// as zero.
func counterValue(cell string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
