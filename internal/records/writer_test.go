package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/threadstock/threadstock/internal/tabular"
)

type fixedCommissions map[Platform]Commission

func (f fixedCommissions) CommissionFor(p Platform) Commission {
	return f[p]
}

func testSheets() Sheets {
	return Sheets{Stock: "Stock", Sales: "Sales", Purchases: "Purchases", Logs: "Logs"}
}

func newTestStore() *tabular.Memory {
	m := tabular.NewMemory()
	m.Create("Stock", StockHeader())
	m.Create("Sales", SalesHeader())
	m.Create("Purchases", PurchasesHeader())
	m.Create("Logs", LogsHeader())
	return m
}

func fixedClock() time.Time {
	return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
}

func newBatch(store tabular.Store) *BatchWriter {
	w := NewBatchWriter(store, testSheets(), fixedCommissions{PlatformVinted: {Percent: 12, FlatFee: 0.70}})
	w.Clock = fixedClock
	return w
}

func TestUpsertStockMergesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, StockItem{SKU: "ABC123", Title: "Jacket"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Write(ctx, StockItem{SKU: "abc123", Brand: "Nike"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	rows, err := store.Rows(ctx, "Stock")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	row := rows[1]
	if row[colStockSKU-1] != "ABC123" {
		t.Fatalf("sku = %q, want original casing ABC123", row[colStockSKU-1])
	}
	if row[colStockTitle-1] != "Jacket" {
		t.Fatalf("title = %q, partial update must not clear it", row[colStockTitle-1])
	}
	if row[colStockBrand-1] != "Nike" {
		t.Fatalf("brand = %q, want Nike", row[colStockBrand-1])
	}
}

func TestUpsertStockKeepsCreationDate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, StockItem{SKU: "X1", Title: "Cap"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	created := mustRow(t, store, "Stock", 1)[colStockCreated-1]
	if created == "" {
		t.Fatal("creation date not set on insert")
	}

	w.Clock = func() time.Time { return fixedClock().Add(48 * time.Hour) }
	if err := w.Write(ctx, StockItem{SKU: "x1", Condition: "good"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := mustRow(t, store, "Stock", 1)[colStockCreated-1]; got != created {
		t.Fatalf("creation date overwritten: %q -> %q", created, got)
	}
}

func TestAppendSaleComputesFee(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, SaleEvent{Platform: PlatformVinted, Title: "Jacket", Price: 50}); err != nil {
		t.Fatalf("write: %v", err)
	}

	row := mustRow(t, store, "Sales", 1)
	if row[colSalePrice-1] != "50.00" {
		t.Fatalf("price = %q", row[colSalePrice-1])
	}
	if row[colSaleFee-1] != "6.70" {
		t.Fatalf("fee = %q, want 6.70 (12%% + 0.70 flat)", row[colSaleFee-1])
	}
	if row[colSalePlatform-1] != "Vinted" {
		t.Fatalf("platform = %q", row[colSalePlatform-1])
	}
}

func TestAppendSaleUnconfiguredPlatformHasZeroFee(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, SaleEvent{Platform: PlatformWhatnot, Title: "Card", Price: 15}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := mustRow(t, store, "Sales", 1)[colSaleFee-1]; got != "0.00" {
		t.Fatalf("fee = %q, want 0.00", got)
	}
}

func TestAppendPurchase(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	p := PurchaseEvent{
		Date:     time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC),
		Supplier: "Emmaus",
		Price:    4.50,
		Brand:    "Levi's",
	}
	if err := w.Write(ctx, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	row := mustRow(t, store, "Purchases", 1)
	if row[colPurchaseDate-1] != "2025-05-12" {
		t.Fatalf("date = %q", row[colPurchaseDate-1])
	}
	if row[colPurchaseSupplier-1] != "Emmaus" || row[colPurchasePrice-1] != "4.50" {
		t.Fatalf("unexpected purchase row %v", row)
	}
}

func TestBumpCounter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, StockItem{SKU: "SKU9", Title: "Boots"}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := w.Write(ctx, EngagementEvent{SKU: "sku9", Action: EngagementFavorite}); err != nil {
			t.Fatalf("bump favorite: %v", err)
		}
	}
	if err := w.Write(ctx, EngagementEvent{SKU: "SKU9", Action: EngagementOffer}); err != nil {
		t.Fatalf("bump offer: %v", err)
	}

	row := mustRow(t, store, "Stock", 1)
	if row[colStockFavorites-1] != "2" {
		t.Fatalf("favorites = %q, want 2", row[colStockFavorites-1])
	}
	if row[colStockOffers-1] != "1" {
		t.Fatalf("offers = %q, want 1", row[colStockOffers-1])
	}
}

func TestBumpCounterUnknownSKUIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newBatch(store)

	if err := w.Write(ctx, EngagementEvent{SKU: "nope", Action: EngagementFavorite}); err != nil {
		t.Fatalf("expected silent drop, got %v", err)
	}
	rows, _ := store.Rows(ctx, "Stock")
	if len(rows) != 1 {
		t.Fatalf("unexpected stock mutation: %v", rows)
	}
}

func TestMissingSheetSurfacesConfigurationFault(t *testing.T) {
	ctx := context.Background()
	store := tabular.NewMemory() // no sheets created
	w := NewBatchWriter(store, testSheets(), nil)

	err := w.Write(ctx, StockItem{SKU: "A"})
	if !errors.Is(err, tabular.ErrSheetMissing) {
		t.Fatalf("expected ErrSheetMissing, got %v", err)
	}
}

func TestCellWriterMatchesBatchSemantics(t *testing.T) {
	ctx := context.Background()
	batchStore := newTestStore()
	cellStore := newTestStore()

	bw := newBatch(batchStore)
	cw := NewCellWriter(cellStore, testSheets(), fixedCommissions{PlatformVinted: {Percent: 12, FlatFee: 0.70}})
	cw.Clock = fixedClock

	script := []Record{
		StockItem{SKU: "ABC123", Title: "Jacket"},
		StockItem{SKU: "abc123", Brand: "Nike", Photos: []string{"a.jpg", "b.jpg"}},
		EngagementEvent{SKU: "ABC123", Action: EngagementFavorite},
		SaleEvent{Platform: PlatformVinted, Title: "Jacket", Price: 50, SKU: "ABC123"},
	}
	for _, rec := range script {
		if err := bw.Write(ctx, rec); err != nil {
			t.Fatalf("batch write %v: %v", rec.Kind(), err)
		}
		if err := cw.Write(ctx, rec); err != nil {
			t.Fatalf("cell write %v: %v", rec.Kind(), err)
		}
	}

	for _, sheet := range []string{"Stock", "Sales"} {
		batchRows, _ := batchStore.Rows(ctx, sheet)
		cellRows, _ := cellStore.Rows(ctx, sheet)
		if len(batchRows) != len(cellRows) {
			t.Fatalf("%s: row count differs %d vs %d", sheet, len(batchRows), len(cellRows))
		}
		for i := range batchRows {
			br, cr := padded(batchRows[i]), padded(cellRows[i])
			for c := range br {
				if br[c] != cr[c] {
					t.Fatalf("%s row %d col %d differs: %q vs %q", sheet, i+1, c+1, br[c], cr[c])
				}
			}
		}
	}
}

func TestRecordKinds(t *testing.T) {
	// The category name comes from Kind(); the engagement action lives in its
	// own field and never leaks into the category.
	tests := []struct {
		rec  Record
		want string
	}{
		{StockItem{SKU: "A"}, "stock"},
		{SaleEvent{Platform: PlatformVinted}, "sale"},
		{PurchaseEvent{Supplier: "Emmaus"}, "purchase"},
		{EngagementEvent{SKU: "A", Action: EngagementFavorite}, "engagement"},
		{EngagementEvent{SKU: "A", Action: EngagementOffer}, "engagement"},
	}
	for _, tt := range tests {
		if got := tt.rec.Kind(); got != tt.want {
			t.Fatalf("Kind() = %q, want %q", got, tt.want)
		}
	}
}

func padded(row []string) []string {
	out := append([]string(nil), row...)
	for len(out) < stockColumns {
		out = append(out, "")
	}
	return out
}

func mustRow(t *testing.T, store tabular.Store, sheet string, dataRow int) []string {
	t.Helper()
	rows, err := store.Rows(context.Background(), sheet)
	if err != nil {
		t.Fatalf("rows %s: %v", sheet, err)
	}
	if len(rows) <= dataRow {
		t.Fatalf("sheet %s has no data row %d: %v", sheet, dataRow, rows)
	}
	return rows[dataRow]
}
